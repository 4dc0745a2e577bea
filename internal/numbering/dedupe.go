package numbering

// DedupeByKey keeps the first record for each key, preserving order.
func DedupeByKey[T any, K comparable](records []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
