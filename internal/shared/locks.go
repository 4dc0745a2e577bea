package shared

import "fmt"

// SequenceLockKey builds redis keys guarding number allocation for one scope.
func SequenceLockKey(series, scope string) string {
	return fmt.Sprintf("sequence:%s:%s:lock", series, scope)
}
