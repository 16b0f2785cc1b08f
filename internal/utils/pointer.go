package utils

// Ptr returns a pointer to v, avoiding a temporary variable when the address
// of a literal or computed value is needed.
func Ptr[T any](v T) *T {
	return &v
}
