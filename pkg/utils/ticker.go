// Package utils provides small helpers shared across marketbrief.
package utils

import (
	"sort"
	"strings"
	"unicode"
)

// MaxTickerLen is the longest symbol ExtractTickers accepts.
const MaxTickerLen = 5

// ExtractTickers returns the ticker-like symbols found in query, in order
// of first appearance and without duplicates.
//
// A candidate is a maximal run of letters (any script, so accented letters
// extend a run) that is 1 to 5 characters long and made only of ASCII
// uppercase letters. "AAPL" and "NVDA" match in "Analiza AAPL y NVDA";
// "ÉXITO" and "APPLES" do not. No registry lookup is done.
func ExtractTickers(query string) []string {
	tickers := []string{}
	seen := make(map[string]bool)

	runes := []rune(query)
	for i := 0; i < len(runes); {
		if !unicode.IsLetter(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsLetter(runes[j]) {
			j++
		}
		word := runes[i:j]
		i = j

		if !isTickerWord(word) {
			continue
		}
		t := string(word)
		if !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}
	return tickers
}

func isTickerWord(word []rune) bool {
	if len(word) == 0 || len(word) > MaxTickerLen {
		return false
	}
	for _, r := range word {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeTicker trims whitespace, strips a leading "$" and uppercases.
func NormalizeTicker(ticker string) string {
	t := strings.TrimSpace(ticker)
	t = strings.TrimPrefix(t, "$")
	return strings.ToUpper(strings.TrimSpace(t))
}

// NormalizeTickers normalizes every entry, drops empties and keeps the
// first occurrence of duplicates.
func NormalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, raw := range tickers {
		t := NormalizeTicker(raw)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// IsValidTicker reports whether t is a syntactically plausible symbol.
func IsValidTicker(t string) bool {
	return isTickerWord([]rune(t))
}

// SplitTickerList parses a comma or whitespace separated list of tickers.
func SplitTickerList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	return NormalizeTickers(fields)
}

// OrderTickers returns keys arranged by order first, then the remaining
// keys alphabetically. Entries of order missing from keys are skipped.
func OrderTickers(order, keys []string) []string {
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	out := make([]string, 0, len(keys))
	for _, t := range order {
		if present[t] {
			out = append(out, t)
			delete(present, t)
		}
	}
	rest := make([]string, 0, len(present))
	for k := range present {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}
