package medicine

import (
	"strconv"
	"strings"
	"unicode"
)

// parseUnits extracts the leading integer from a free-text dosage such as
// "2 tablets" or "1 capsule". Dosages with no leading number ("half a
// tablet") count as one unit per take.
func parseUnits(dosage string) int {
	s := strings.TrimSpace(dosage)
	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == 0 {
		return 1
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
