// Package seqid derives the next sequential identifier from the ids already
// present in a collection. The next value is always max+1, so gaps left by
// deletions are never reused below the current maximum.
package seqid

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultWidth is the zero padding applied to prefixed ids ("INV-001").
const DefaultWidth = 3

// NextPrefixed returns prefix followed by max(existing suffix)+1, zero padded
// to width digits. Ids that do not carry the prefix or a numeric suffix are ignored.
func NextPrefixed(prefix string, width int, ids []string) string {
	max := 0
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(id[len(prefix):])
		if err != nil || n < 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, width, max+1)
}

// NextNumeric returns max(existing integer id)+1 as a decimal string.
func NextNumeric(ids []string) string {
	max := 0
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}
