package models

import "encoding/json"

// Optional holds a JSON value that may be null or absent. Structured-output
// engines emit every declared key with nulls for "unset"; free-form output
// simply omits the key. Both decode to Valid == false.
type Optional[T any] struct {
	Value T
	Valid bool
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		o.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// Ptr returns a pointer to a copy of the value, or nil when unset.
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// Or returns the value, or def when unset.
func (o Optional[T]) Or(def T) T {
	if !o.Valid {
		return def
	}
	return o.Value
}
