package battle

import "strings"

// normalizeAnswer lowercases, collapses whitespace and drops trailing
// punctuation.
func normalizeAnswer(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ToLower(trimmed)
	trimmed = strings.Join(strings.Fields(trimmed), " ")
	trimmed = strings.TrimRightFunc(trimmed, func(r rune) bool {
		switch r {
		case '.', ',', '!', '?', ';':
			return true
		default:
			return false
		}
	})
	return strings.TrimSpace(trimmed)
}

// MatchesExpected reports whether a typed answer is accepted. When the
// expected side lists comma separated alternatives any one of them is
// enough, unless the prompt itself is a list and the user typed a list,
// in which case every item must be present in any order.
func MatchesExpected(userText, expected string, promptHasComma bool) bool {
	if strings.Contains(expected, ",") {
		if promptHasComma && strings.Contains(userText, ",") {
			return matchesCommaList(userText, expected)
		}
		return matchesAnyCommaToken(userText, expected)
	}
	normalized := normalizeAnswer(userText)
	return normalized != "" && normalized == normalizeAnswer(expected)
}

func matchesAnyCommaToken(userText, expected string) bool {
	normalizedUser := normalizeAnswer(userText)
	if normalizedUser == "" {
		return false
	}
	tokens, ok := splitCommaTokens(expected)
	if !ok {
		return false
	}
	for _, token := range tokens {
		if normalizedUser == token {
			return true
		}
	}
	return false
}

func matchesCommaList(userText, expected string) bool {
	userTokens, ok := splitCommaTokens(userText)
	if !ok {
		return false
	}
	expectedTokens, ok := splitCommaTokens(expected)
	if !ok || len(userTokens) != len(expectedTokens) || len(userTokens) == 0 {
		return false
	}
	counts := make(map[string]int, len(expectedTokens))
	for _, token := range expectedTokens {
		counts[token]++
	}
	for _, token := range userTokens {
		counts[token]--
		if counts[token] < 0 {
			return false
		}
	}
	return true
}

func splitCommaTokens(input string) ([]string, bool) {
	parts := strings.Split(input, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := normalizeAnswer(part)
		if token == "" {
			return nil, false
		}
		tokens = append(tokens, token)
	}
	return tokens, true
}
