package state

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/botmesh/core"
)

// PropertyAccessor reads and writes one named property inside a scope's
// object. Values cross the storage boundary as plain JSON types, so any
// serializable T works; each Get decodes a fresh copy and each Set encodes
// one, keeping callers isolated from the cached object's internals.
type PropertyAccessor[T any] struct {
	scope *Scope
	name  string
}

// NewPropertyAccessor creates an accessor for the named property on scope.
func NewPropertyAccessor[T any](scope *Scope, name string) *PropertyAccessor[T] {
	return &PropertyAccessor[T]{scope: scope, name: name}
}

// Name returns the property name.
func (p *PropertyAccessor[T]) Name() string { return p.name }

// Get returns the property value, loading the scope if needed. A missing
// property yields the zero value and ok=false without persisting anything.
func (p *PropertyAccessor[T]) Get(tc *core.TurnContext) (T, bool, error) {
	var zero T
	item, err := p.scope.Load(tc, false)
	if err != nil {
		return zero, false, err
	}
	raw, ok := item[p.name]
	if !ok {
		return zero, false, nil
	}
	value, err := decodeAs[T](raw)
	if err != nil {
		return zero, false, fmt.Errorf("get property %q: %w", p.name, err)
	}
	return value, true, nil
}

// GetWithDefault returns the property value, or stores a copy of def into
// the scope and returns it when the property is missing. The default is
// deep-copied, so later mutation of def never leaks into state.
func (p *PropertyAccessor[T]) GetWithDefault(tc *core.TurnContext, def T) (T, error) {
	value, ok, err := p.Get(tc)
	if err != nil {
		return value, err
	}
	if ok {
		return value, nil
	}
	if err := p.Set(tc, def); err != nil {
		return value, err
	}
	return decodeCopy(def)
}

// Set writes the property into the scope's cached object, loading the
// scope if needed. The write reaches storage on the next scope Save.
func (p *PropertyAccessor[T]) Set(tc *core.TurnContext, value T) error {
	item, err := p.scope.Load(tc, false)
	if err != nil {
		return err
	}
	plain, err := toPlainJSON(value)
	if err != nil {
		return fmt.Errorf("set property %q: %w", p.name, err)
	}
	item[p.name] = plain
	return nil
}

// Delete removes the property from the scope's cached object.
func (p *PropertyAccessor[T]) Delete(tc *core.TurnContext) error {
	item, err := p.scope.Load(tc, false)
	if err != nil {
		return err
	}
	delete(item, p.name)
	return nil
}

// toPlainJSON normalizes a value to the plain map/slice/scalar types a
// JSON round-trip produces, so content hashing sees the same encoding
// regardless of the caller's concrete type.
func toPlainJSON(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(encoded, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}

func decodeAs[T any](raw any) (T, error) {
	var value T
	encoded, err := json.Marshal(raw)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(encoded, &value); err != nil {
		return value, err
	}
	return value, nil
}

func decodeCopy[T any](value T) (T, error) {
	return decodeAs[T](value)
}
