package dto

import "encoding/json"

// Optional marks whether a field was present in a partial update payload.
// A missing key and an explicit JSON null both leave Set false.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a present optional holding value.
func Some[T any](value T) Optional[T] {
	return Optional[T]{Value: value, Set: true}
}

// Get returns the value and whether it was supplied.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional[T]{}
		return nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*o = Some(value)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
