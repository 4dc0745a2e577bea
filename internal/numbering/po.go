package numbering

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultPOPrefix is the purchase order series used when none is configured.
const DefaultPOPrefix = "JJSPL/STORES"

var poBase = regexp.MustCompile(`/(\d+)(?:-\d+)?$`)

// errNumberParse marks an existing number that does not follow the scheme.
// Such numbers are excluded from allocation, never reported.
var errNumberParse = errors.New("numbering: unparseable number")

// Series is a purchase order number series: PREFIX/FY/N with optional -R
// revision suffix.
type Series struct {
	Prefix string
}

// NewSeries returns a series for prefix, falling back to DefaultPOPrefix.
func NewSeries(prefix string) Series {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPOPrefix
	}
	return Series{Prefix: prefix}
}

// YearPrefix returns "PREFIX/FY/" for the fiscal year containing ref.
func (s Series) YearPrefix(ref time.Time) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultPOPrefix
	}
	return fmt.Sprintf("%s/%s/", prefix, FiscalYear(ref))
}

// Next returns the next base number in the fiscal year of ref.
func (s Series) Next(existing []string, ref time.Time) string {
	fy := FiscalYear(ref)
	highest := 0
	for _, number := range existing {
		if !strings.Contains(number, "/"+fy+"/") {
			continue
		}
		base, err := parseBase(number)
		if err != nil {
			continue
		}
		if base > highest {
			highest = base
		}
	}
	return s.YearPrefix(ref) + strconv.Itoa(highest+1)
}

// NextPONumber allocates under DefaultPOPrefix.
func NextPONumber(existing []string, ref time.Time) string {
	return Series{Prefix: DefaultPOPrefix}.Next(existing, ref)
}

func parseBase(number string) (int, error) {
	m := poBase.FindStringSubmatch(number)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", errNumberParse, number)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errNumberParse, number)
	}
	return n, nil
}

// splitRevision separates "A/B/80-2" into base key "A/B/80" and revision
// text "2". Only the first dash of the last segment counts.
func splitRevision(number string) (baseKey, revision string) {
	head, last := "", number
	if idx := strings.LastIndex(number, "/"); idx >= 0 {
		head, last = number[:idx+1], number[idx+1:]
	}
	seq, rev, _ := strings.Cut(last, "-")
	if r, _, found := strings.Cut(rev, "-"); found {
		rev = r
	}
	return head + seq, rev
}

// leadingInt parses the leading digits of s.
func leadingInt(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextRevision returns the next revision of poNumber given every number in
// use. A number without suffix is revision 0; unreadable suffixes are ignored.
func NextRevision(poNumber string, existing []string) string {
	baseKey, _ := splitRevision(poNumber)
	highest := 0
	for _, number := range existing {
		key, rev := splitRevision(number)
		if key != baseKey {
			continue
		}
		if rev == "" {
			continue
		}
		n, ok := leadingInt(rev)
		if !ok {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%d", baseKey, highest+1)
}
