package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestFiscalYearRollsOverInApril(t *testing.T) {
	require.Equal(t, "23-24", FiscalYear(date(2024, time.March, 31)))
	require.Equal(t, "24-25", FiscalYear(date(2024, time.April, 1)))
	require.Equal(t, "99-00", FiscalYear(date(2000, time.January, 15)))
	require.Equal(t, "00-01", FiscalYear(date(2000, time.December, 15)))
}

func TestNextPONumberEmpty(t *testing.T) {
	require.Equal(t, "JJSPL/STORES/24-25/1", NextPONumber(nil, date(2024, time.May, 1)))
}

func TestNextPONumberIsMaxPlusOneRegardlessOfOrder(t *testing.T) {
	ref := date(2024, time.June, 10)
	existing := []string{
		"JJSPL/STORES/24-25/7",
		"JJSPL/STORES/24-25/80-2",
		"JJSPL/STORES/23-24/500",
		"JJSPL/STORES/24-25/12",
		"garbage",
		"JJSPL/STORES/24-25/draft",
	}
	require.Equal(t, "JJSPL/STORES/24-25/81", NextPONumber(existing, ref))

	reversed := make([]string, len(existing))
	for i, n := range existing {
		reversed[len(existing)-1-i] = n
	}
	require.Equal(t, "JJSPL/STORES/24-25/81", NextPONumber(reversed, ref))
}

func TestSeriesPrefix(t *testing.T) {
	s := NewSeries("ACME/PUR/")
	require.Equal(t, "ACME/PUR/24-25/3", s.Next([]string{"ACME/PUR/24-25/2"}, date(2024, time.May, 1)))
	require.Equal(t, DefaultPOPrefix, NewSeries("  ").Prefix)
}

func TestNextRevision(t *testing.T) {
	base := "JJSPL/STORES/24-25/80"
	require.Equal(t, base+"-1", NextRevision(base, nil))

	existing := []string{base, base + "-1", base + "-2", base + "-4", "JJSPL/STORES/24-25/81-9", base + "-x"}
	require.Equal(t, base+"-5", NextRevision(base, existing))
	require.Equal(t, base+"-5", NextRevision(base+"-2", existing))
}

func TestNextIssueNumber(t *testing.T) {
	require.Equal(t, "IS-0008", NextIssueNumber([]string{"IS-0007", "IS-0003"}))
	require.Equal(t, "IS-0001", NextIssueNumber(nil))
	require.Equal(t, "IS-0001", NextIssueNumber([]string{"IS-12a", "XIS-0009", ""}))
	require.Equal(t, "IS-10000", NextIssueNumber([]string{"IS-9999"}))
	require.Equal(t, "IS-0002", NextIssueNumber([]string{" IS-0009", "IS-0009 ", "IS-0001"}))
}

func TestNextSerialPrefixes(t *testing.T) {
	require.Equal(t, "IN-0003", NextIndentNumber([]string{"IN-0002", "IN-0001"}))
	require.Equal(t, "LF-0001", NextLiftNumber([]string{"IN-0002"}))
}

func TestDedupeByKeyKeepsFirst(t *testing.T) {
	type po struct {
		number string
		line   int
	}
	records := []po{{"A", 1}, {"B", 1}, {"A", 2}}
	out := DedupeByKey(records, func(p po) string { return p.number })
	require.Equal(t, []po{{"A", 1}, {"B", 1}}, out)
	require.Empty(t, DedupeByKey([]po{}, func(p po) string { return p.number }))
}
