// Package utils holds small value helpers shared by the API types and the dev server.
package utils

// Ptr returns a pointer to a copy of v, for optional JSON fields.
func Ptr[T any](v T) *T {
	return &v
}

// Value dereferences v, returning the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Coalesce returns the first non-empty string.
func Coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Strings keeps the non-empty strings of a decoded JSON array and drops everything else.
func Strings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
