package types

import (
	"bytes"
	"encoding/json"
)

// Optional holds a value that may be absent. The zero value is absent.
// Absent and present-but-empty are distinct states.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an absent Optional
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// NonEmpty returns Some(s) for a non-empty string and None otherwise.
// Use at input boundaries where an empty string carries no information.
func NonEmpty(s string) Optional[string] {
	if s == "" {
		return None[string]()
	}
	return Some(s)
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSome reports whether a value is present
func (o Optional[T]) IsSome() bool {
	return o.ok
}

// IsZero reports whether the Optional is absent (used by the omitzero JSON option)
func (o Optional[T]) IsZero() bool {
	return !o.ok
}

// OrElse returns the value if present, otherwise def
func (o Optional[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// MarshalJSON encodes an absent Optional as null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as absent and anything else as present
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
