package engine

import (
	"strings"
	"unicode/utf8"
)

// Tokenize splits text into lowercase tokens: each maximal run of ASCII
// letters and digits is one token, and each CJK Unified Ideograph
// (U+4E00..U+9FFF) is a token of its own. Everything else separates tokens.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	var tokens []string
	start := -1
	for i, r := range text {
		if isASCIIAlnum(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, strings.ToLower(text[start:i]))
			start = -1
		}
		if isCJK(r) {
			tokens = append(tokens, text[i:i+utf8.RuneLen(r)])
		}
	}
	if start >= 0 {
		tokens = append(tokens, strings.ToLower(text[start:]))
	}
	return tokens
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}
