package interfaces

import "context"

// ResponseSink stores raw service responses under a file name.
type ResponseSink interface {
	Put(ctx context.Context, name, text string) error
}
