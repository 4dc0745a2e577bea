package numbering

import (
	"fmt"
	"regexp"
	"strconv"
)

// Serial prefixes.
const (
	IssuePrefix  = "IS"
	IndentPrefix = "IN"
	LiftPrefix   = "LF"
	serialWidth  = 4
)

// NextSerial returns PREFIX-NNNN one past the highest well-formed number in
// existing. Numbers that do not match exactly, including padded ones, are
// ignored.
func NextSerial(prefix string, width int, existing []string) string {
	if width <= 0 {
		width = serialWidth
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)$`)
	highest := 0
	for _, number := range existing {
		m := pattern.FindStringSubmatch(number)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, highest+1)
}

// NextIssueNumber returns the next IS-NNNN store issue number.
func NextIssueNumber(existing []string) string {
	return NextSerial(IssuePrefix, serialWidth, existing)
}

// NextIndentNumber returns the next IN-NNNN indent number.
func NextIndentNumber(existing []string) string {
	return NextSerial(IndentPrefix, serialWidth, existing)
}

// NextLiftNumber returns the next LF-NNNN lift number.
func NextLiftNumber(existing []string) string {
	return NextSerial(LiftPrefix, serialWidth, existing)
}
