package utils

// Unique returns the distinct values of slice in first-seen order. It never returns nil.
func Unique[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	list := make([]T, 0, len(slice))
	for _, entry := range slice {
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		list = append(list, entry)
	}
	return list
}
