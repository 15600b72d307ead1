package api

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Nullable is an optional request field that distinguishes an absent key from an explicit
// JSON null. Set is true whenever the key was present; Valid is false when it was null.
type Nullable[T any] struct {
	Value T
	Valid bool
	Set   bool
}

// NullableOf returns a set, non-null value.
func NullableOf[T any](v T) Nullable[T] {
	return Nullable[T]{Value: v, Valid: true, Set: true}
}

// Null returns a set, null value.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// UnmarshalJSON is only called for keys present in the document, including null ones.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		n.Value, n.Valid = zero, false
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr returns the value as a pointer, nil for null or absent values. database/sql writes a
// nil pointer as NULL.
func (n Nullable[T]) Ptr() *T {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// ElemType reports the wrapped type, so document generators can describe the field as T.
func (Nullable[T]) ElemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// validationValue exposes the wrapped value to the validator; null and absent values
// validate as empty.
func (n Nullable[T]) validationValue() any {
	if !n.Valid {
		return nil
	}
	return n.Value
}

type validationValuer interface {
	validationValue() any
}

func nullableValue(field reflect.Value) any {
	if n, ok := field.Interface().(validationValuer); ok {
		return n.validationValue()
	}
	return nil
}
