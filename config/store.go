// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"

	"github.com/z5labs/stencil/config/key"
)

// UnknownKeyerError is returned when a source sets a value with a
// [key.Keyer] other than [key.Name] or [key.Chain].
type UnknownKeyerError struct {
	Key key.Keyer
}

// Error implements the [builtin.error] interface.
func (e UnknownKeyerError) Error() string {
	return fmt.Sprintf("config source tried setting config value with unknown key.Keyer: %s", e.Key.Key())
}

// EmptyKeyChainError is returned when a value is set on an empty [key.Chain].
type EmptyKeyChainError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e EmptyKeyChainError) Error() string {
	return fmt.Sprintf("attempted to set value to an empty key chain: %v", e.Value)
}

// UnexpectedKeyValueTypeError represents the situation when
// a source tries nesting values under a key which already
// holds a plain value.
type UnexpectedKeyValueTypeError struct {
	Key          string
	ExpectedType string
}

// Error implements the [builtin.error] interface.
func (e UnexpectedKeyValueTypeError) Error() string {
	return fmt.Sprintf("expected key value to be a %s: %s", e.ExpectedType, e.Key)
}

// inMemoryStore matches keys case insensitively, so STENCIL_HTTP_MAXBODYBYTES
// overrides http.maxBodyBytes set by a file.
type inMemoryStore map[string]any

func (m inMemoryStore) Set(k key.Keyer, v any) error {
	return set(m, k, v)
}

func set(m map[string]any, k key.Keyer, v any) error {
	switch x := k.(type) {
	case key.Name:
		m[existing(m, string(x))] = v
	case key.Chain:
		return setKeyChain(m, x, v)
	default:
		return UnknownKeyerError{Key: k}
	}
	return nil
}

func existing(m map[string]any, name string) string {
	if _, ok := m[name]; ok {
		return name
	}
	for k := range m {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return name
}

func setKeyChain(m map[string]any, chain key.Chain, v any) error {
	if len(chain) == 0 {
		return EmptyKeyChainError{Value: v}
	}

	root := chain[0]
	if len(chain) == 1 {
		return set(m, root, v)
	}

	name := existing(m, root.Key())
	old, ok := m[name]
	if !ok {
		old = make(map[string]any)
		m[name] = old
	}

	subM, ok := old.(map[string]any)
	if !ok {
		return UnexpectedKeyValueTypeError{
			Key:          name,
			ExpectedType: "map[string]any",
		}
	}
	return set(subM, chain[1:], v)
}

// Map is an ordinary map[string]any but implements the Source interface.
type Map map[string]any

// Apply implements the [Source] interface. It recursively walks the
// underlying map to find key value pairs to set on the given store.
func (m Map) Apply(store Store) error {
	return walkMap(m, store, nil)
}

func walkMap(m map[string]any, store Store, chain key.Chain) error {
	for k, v := range m {
		next := append(chain[:len(chain):len(chain)], key.Name(k))
		switch x := v.(type) {
		case map[string]any:
			err := walkMap(x, store, next)
			if err != nil {
				return err
			}
		default:
			err := store.Set(next, x)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
