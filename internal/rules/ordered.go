package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	"gopkg.in/yaml.v3"
)

// Ordered is a string-keyed map that remembers insertion order. Decoding from
// JSON or YAML keeps document order; a repeated key keeps its first position
// and takes the last value.
type Ordered[V any] struct {
	keys   []string
	values map[string]V
}

// Set inserts or updates key. Updating keeps the original position.
func (o *Ordered[V]) Set(key string, value V) {
	if o.values == nil {
		o.values = make(map[string]V)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value for key.
func (o *Ordered[V]) Get(key string) (V, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key.
func (o *Ordered[V]) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys.
func (o *Ordered[V]) Len() int {
	return len(o.keys)
}

// Keys returns the keys in order.
func (o *Ordered[V]) Keys() []string {
	return append([]string(nil), o.keys...)
}

// All iterates over entries in order.
func (o *Ordered[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range o.keys {
			if !yield(k, o.values[k]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the entries as a JSON object in order.
func (o Ordered[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. null yields an
// empty map.
func (o *Ordered[V]) UnmarshalJSON(data []byte) error {
	o.keys = nil
	o.values = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		o.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// UnmarshalYAML decodes a YAML mapping keeping key order.
func (o *Ordered[V]) UnmarshalYAML(value *yaml.Node) error {
	o.keys = nil
	o.values = nil

	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping", value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		var v V
		if err := value.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		o.Set(key, v)
	}
	return nil
}
