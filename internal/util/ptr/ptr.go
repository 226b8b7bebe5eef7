// Package ptr provides helper functions for creating and reading pointers to primitive types.
package ptr

// Bool returns a pointer to the given bool value.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to the given int value.
func Int(i int) *int { return &i }

// String returns a pointer to the given string value.
func String(s string) *string { return &s }
