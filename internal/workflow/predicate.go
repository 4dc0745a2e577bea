package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

// TimestampLayout is how planned and actual values are written.
const TimestampLayout = time.RFC3339

// Older rows carry en-GB local timestamps.
var readLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"02/01/2006 15:04:05",
	"02/01/2006, 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads a planned or actual value.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsPending reports whether stage i is planned but not complete.
func IsPending(r Record, i int) bool {
	m, _ := r.Stage(i)
	return m.State() == StatePlanned
}

// IsHistory reports whether stage i is complete.
func IsHistory(r Record, i int) bool {
	m, _ := r.Stage(i)
	return m.State() == StateCompleted
}

// Pending filters records waiting at stage i, preserving order.
func Pending(records []Record, i int) []Record {
	out := make([]Record, 0)
	for _, r := range records {
		if IsPending(r, i) {
			out = append(out, r)
		}
	}
	return out
}

// History filters records that completed stage i, preserving order.
func History(records []Record, i int) []Record {
	out := make([]Record, 0)
	for _, r := range records {
		if IsHistory(r, i) {
			out = append(out, r)
		}
	}
	return out
}

// Advance completes stage i at actualAt and merges payload into the record
// fields. The input record is left untouched.
func Advance(r Record, i int, payload map[string]any, actualAt time.Time) (Record, error) {
	if !r.Kind.HasStage(i) {
		return Record{}, shared.Validationf("workflow: %s has no stage %d", r.Kind, i)
	}
	mark, _ := r.Stage(i)
	switch mark.State() {
	case StateUnplanned:
		return Record{}, shared.Validationf("workflow: %s %s stage %d is not planned", r.Kind, r.Key, i)
	case StateCompleted:
		return Record{}, shared.Validationf("workflow: %s %s stage %d already completed", r.Kind, r.Key, i)
	}
	first, _ := r.Kind.Stages()
	for j := first; j < i; j++ {
		if IsPending(r, j) {
			return Record{}, shared.Validationf("workflow: %s %s stage %d is still open", r.Kind, r.Key, j)
		}
	}

	out := r.clone()
	for k, v := range payload {
		if isStageField(k) {
			continue
		}
		out.Fields[k] = v
	}
	mark.Actual = actualAt.Format(TimestampLayout)
	out.setStage(mark)
	if planned, ok := ParseTimestamp(mark.Planned); ok {
		out.Fields[r.Kind.DelayField(i)] = FormatDelay(actualAt.Sub(planned))
	}
	return out, nil
}

// Schedule plans stage i at plannedAt.
func Schedule(r Record, i int, plannedAt time.Time) (Record, error) {
	if !r.Kind.HasStage(i) {
		return Record{}, shared.Validationf("workflow: %s has no stage %d", r.Kind, i)
	}
	mark, ok := r.Stage(i)
	if ok && mark.Planned != "" {
		return Record{}, shared.Validationf("workflow: %s %s stage %d already planned", r.Kind, r.Key, i)
	}
	out := r.clone()
	out.setStage(StageMark{Index: i, Planned: plannedAt.Format(TimestampLayout)})
	return out, nil
}

// FormatDelay renders a lateness as hh:mm:ss. Early completion is zero.
func FormatDelay(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func isStageField(name string) bool {
	_, ok := stageIndex(name)
	return ok
}

// stageIndex parses plannedN and actualN column names.
func stageIndex(name string) (int, bool) {
	var rest string
	switch {
	case strings.HasPrefix(name, "planned"):
		rest = strings.TrimPrefix(name, "planned")
	case strings.HasPrefix(name, "actual"):
		rest = strings.TrimPrefix(name, "actual")
	default:
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || rest == "" || rest[0] == '+' || rest[0] == '-' {
		return 0, false
	}
	return n, true
}
