package artifact

// ObjectCandidates returns balanced {...} spans of s in order. Scanning
// restarts at every opening brace that is not inside an earlier span, so an
// unbalanced brace in surrounding prose cannot hide a later object. Quotes
// are only tracked inside a span; braces inside JSON strings do not count.
//
// Iterating bytes is safe because ASCII delimiters never occur inside a
// multi-byte UTF-8 sequence.
func ObjectCandidates(s string) []string {
	var candidates []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end, ok := balancedEnd(s, i)
		if !ok {
			continue
		}
		candidates = append(candidates, s[i:end+1])
		i = end
	}
	return candidates
}

// balancedEnd returns the index of the brace closing the one at start.
func balancedEnd(s string, start int) (int, bool) {
	var (
		depth    int
		inString bool
		escape   bool
	)
	for i := start; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
