package extract

import "strings"

const codeFence = "```"

// fence is a markdown code block. contentStart/contentEnd delimit the text
// between the info tag and the closing fence.
type fence struct {
	tag          string
	contentStart int
	contentEnd   int
}

func (f fence) isJSON() bool {
	return strings.EqualFold(f.tag, "json")
}

// findFences pairs fence markers left to right. An opener without a closing
// marker ends the search.
func findFences(s string) []fence {
	var out []fence
	pos := 0
	for pos < len(s) {
		open := strings.Index(s[pos:], codeFence)
		if open == -1 {
			break
		}
		tagStart := pos + open + len(codeFence)
		tagEnd := tagStart
		for tagEnd < len(s) && isTagByte(s[tagEnd]) {
			tagEnd++
		}
		closeRel := strings.Index(s[tagEnd:], codeFence)
		if closeRel == -1 {
			break
		}
		closeAt := tagEnd + closeRel
		out = append(out, fence{
			tag:          s[tagStart:tagEnd],
			contentStart: tagEnd,
			contentEnd:   closeAt,
		})
		pos = closeAt + len(codeFence)
	}
	return out
}

func isTagByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-', b == '_', b == '+', b == '.':
		return true
	}
	return false
}

// trimmedSpan returns the offsets of s[start:end] without surrounding white space.
func trimmedSpan(s string, start, end int) (int, int) {
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}
