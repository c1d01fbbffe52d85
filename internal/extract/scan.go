package extract

// candidate is a balanced {...} or [...] region, End exclusive. children are
// the complete bracket pairs directly nested inside it, tried in turn when
// the candidate itself is not valid JSON.
type candidate struct {
	start, end int
	depth      int
	children   []candidate
}

type frame struct {
	open     byte
	start    int
	depth    int
	children []candidate
}

func closerFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

// scanBalanced walks s once, tracking string state and a bracket stack.
// String state only applies inside a candidate, so quotes in surrounding
// prose do not swallow brackets. A mismatched closer abandons the open
// candidate and the scan continues after it; complete pairs nested in an
// abandoned (or unterminated) candidate are still returned.
func scanBalanced(s string) []candidate {
	var (
		roots    []candidate
		stack    []frame
		inString bool
		escape   bool
	)

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if len(stack) > 0 {
				inString = true
			}
		case '{', '[':
			stack = append(stack, frame{open: ch, start: i})
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if closerFor(top.open) != ch {
				roots = append(roots, salvage(stack)...)
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			c := candidate{start: top.start, end: i + 1, depth: top.depth + 1, children: top.children}
			if len(stack) == 0 {
				roots = append(roots, c)
			} else {
				parent := &stack[len(stack)-1]
				parent.children = append(parent.children, c)
				parent.depth = max(parent.depth, c.depth)
			}
		}
	}

	return append(roots, salvage(stack)...)
}

// salvage returns the complete pairs of abandoned frames, in text order.
func salvage(stack []frame) []candidate {
	var out []candidate
	for _, f := range stack {
		out = append(out, f.children...)
	}
	return out
}
