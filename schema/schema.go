// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package schema builds request body schemas out of small helper fields.
// Every field both validates decoded JSON and describes itself as an
// OpenAPI 3 schema, so the documentation cannot drift from what a route
// actually accepts.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/swaggest/openapi-go/openapi3"
)

// Result is the outcome of validating a value against a [Field].
type Result struct {
	Matches bool

	// Error describes the first mismatch found.
	Error string

	// ErrorPath is the sequence of object keys and array indices leading
	// to the value which did not match. It is empty for the root value.
	ErrorPath []string
}

// Field validates decoded JSON values and documents them.
type Field interface {
	Validate(v any) Result
	Schema() *openapi3.Schema
}

// Meta is the human readable documentation of a field.
type Meta struct {
	Title       string
	Description string
}

func (m Meta) apply(s *openapi3.Schema) *openapi3.Schema {
	if m.Title != "" {
		s.WithTitle(m.Title)
	}
	if m.Description != "" {
		s.WithDescription(m.Description)
	}
	return s
}

func ok() Result {
	return Result{Matches: true}
}

func mismatch(format string, args ...any) Result {
	return Result{
		Error:     fmt.Sprintf(format, args...),
		ErrorPath: []string{},
	}
}

// at prefixes the error path of a failed result with key.
func (r Result) at(key string) Result {
	if r.Matches {
		return r
	}
	r.ErrorPath = append([]string{key}, r.ErrorPath...)
	return r
}

// ErrTrailingData is returned by [Decode] when the body holds more than a
// single JSON value.
var ErrTrailingData = errors.New("unexpected data after top-level value")

// Decode parses a single JSON value. Numbers are kept as [json.Number] so
// integers survive without losing precision.
func Decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	err := dec.Decode(&v)
	if err != nil {
		return nil, err
	}
	_, err = dec.Token()
	if err != io.EOF {
		return nil, ErrTrailingData
	}
	return v, nil
}

// StringOption configures a [String] field.
type StringOption func(*stringField)

// MinLength requires at least n characters.
func MinLength(n int) StringOption {
	return func(f *stringField) {
		f.minLength = &n
	}
}

// MaxLength allows at most n characters.
func MaxLength(n int) StringOption {
	return func(f *stringField) {
		f.maxLength = &n
	}
}

// Enum restricts the value to one of vals.
func Enum(vals ...string) StringOption {
	return func(f *stringField) {
		f.enum = vals
	}
}

// Format documents the expected format, e.g. "email". It is not validated.
func Format(format string) StringOption {
	return func(f *stringField) {
		f.format = format
	}
}

type stringField struct {
	meta      Meta
	minLength *int
	maxLength *int
	enum      []string
	format    string
}

// String is a JSON string. Lengths are counted in characters.
func String(meta Meta, opts ...StringOption) Field {
	f := &stringField{meta: meta}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *stringField) Validate(v any) Result {
	s, isString := v.(string)
	if !isString {
		return mismatch("expected string")
	}

	n := utf8.RuneCountInString(s)
	if f.minLength != nil && n < *f.minLength {
		return mismatch("must be at least %d characters", *f.minLength)
	}
	if f.maxLength != nil && n > *f.maxLength {
		return mismatch("must be at most %d characters", *f.maxLength)
	}
	if len(f.enum) > 0 && !slices.Contains(f.enum, s) {
		return mismatch("must be one of: %s", strings.Join(f.enum, ", "))
	}
	return ok()
}

func (f *stringField) Schema() *openapi3.Schema {
	s := f.meta.apply(new(openapi3.Schema).WithType(openapi3.SchemaTypeString))
	if f.minLength != nil {
		s.WithMinLength(int64(*f.minLength))
	}
	if f.maxLength != nil {
		s.WithMaxLength(int64(*f.maxLength))
	}
	if len(f.enum) > 0 {
		vals := make([]interface{}, len(f.enum))
		for i, e := range f.enum {
			vals[i] = e
		}
		s.WithEnum(vals...)
	}
	if f.format != "" {
		s.WithFormat(f.format)
	}
	return s
}

// NumberKind is either an integer or any number.
type NumberKind string

const (
	Integer NumberKind = "integer"
	Float   NumberKind = "number"
)

// NumberOption configures a [Number] field.
type NumberOption func(*numberField)

// Minimum is the inclusive lower bound.
func Minimum(v float64) NumberOption {
	return func(f *numberField) {
		f.minimum = &v
	}
}

// Maximum is the inclusive upper bound.
func Maximum(v float64) NumberOption {
	return func(f *numberField) {
		f.maximum = &v
	}
}

type numberField struct {
	kind    NumberKind
	meta    Meta
	minimum *float64
	maximum *float64
}

// Number is a JSON number, restricted to whole numbers for [Integer].
func Number(kind NumberKind, meta Meta, opts ...NumberOption) Field {
	f := &numberField{kind: kind, meta: meta}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		x, err := n.Float64()
		return x, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func isInteger(v any, x float64) bool {
	if n, isNumber := v.(json.Number); isNumber {
		_, err := strconv.ParseInt(n.String(), 10, 64)
		if err == nil {
			return true
		}
	}
	return !math.IsInf(x, 0) && x == math.Trunc(x)
}

func (f *numberField) Validate(v any) Result {
	x, isNumber := toFloat(v)
	if !isNumber {
		return mismatch("expected %s", f.kind)
	}
	if f.kind == Integer && !isInteger(v, x) {
		return mismatch("expected integer")
	}
	if f.minimum != nil && x < *f.minimum {
		return mismatch("must be at least %v", *f.minimum)
	}
	if f.maximum != nil && x > *f.maximum {
		return mismatch("must be at most %v", *f.maximum)
	}
	return ok()
}

func (f *numberField) Schema() *openapi3.Schema {
	typ := openapi3.SchemaTypeNumber
	if f.kind == Integer {
		typ = openapi3.SchemaTypeInteger
	}
	s := f.meta.apply(new(openapi3.Schema).WithType(typ))
	if f.minimum != nil {
		s.WithMinimum(*f.minimum)
	}
	if f.maximum != nil {
		s.WithMaximum(*f.maximum)
	}
	return s
}

type booleanField struct {
	meta Meta
}

// Boolean is a JSON true or false.
func Boolean(meta Meta) Field {
	return booleanField{meta: meta}
}

func (f booleanField) Validate(v any) Result {
	if _, isBool := v.(bool); !isBool {
		return mismatch("expected boolean")
	}
	return ok()
}

func (f booleanField) Schema() *openapi3.Schema {
	return f.meta.apply(new(openapi3.Schema).WithType(openapi3.SchemaTypeBoolean))
}

// ArrayOption configures an [Array] field.
type ArrayOption func(*arrayField)

// MinItems requires at least n items.
func MinItems(n int) ArrayOption {
	return func(f *arrayField) {
		f.minItems = &n
	}
}

// MaxItems allows at most n items.
func MaxItems(n int) ArrayOption {
	return func(f *arrayField) {
		f.maxItems = &n
	}
}

type arrayField struct {
	meta     Meta
	items    Field
	minItems *int
	maxItems *int
}

// Array is a JSON array whose every item matches items.
func Array(meta Meta, items Field, opts ...ArrayOption) Field {
	f := &arrayField{meta: meta, items: items}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *arrayField) Validate(v any) Result {
	arr, isArray := v.([]any)
	if !isArray {
		return mismatch("expected array")
	}
	if f.minItems != nil && len(arr) < *f.minItems {
		return mismatch("must have at least %d items", *f.minItems)
	}
	if f.maxItems != nil && len(arr) > *f.maxItems {
		return mismatch("must have at most %d items", *f.maxItems)
	}
	for i, item := range arr {
		res := f.items.Validate(item)
		if !res.Matches {
			return res.at(strconv.Itoa(i))
		}
	}
	return ok()
}

func (f *arrayField) Schema() *openapi3.Schema {
	s := f.meta.apply(new(openapi3.Schema).WithType(openapi3.SchemaTypeArray))
	s.WithItems(openapi3.SchemaOrRef{Schema: f.items.Schema()})
	if f.minItems != nil {
		s.WithMinItems(int64(*f.minItems))
	}
	if f.maxItems != nil {
		s.WithMaxItems(int64(*f.maxItems))
	}
	return s
}

type optionalField struct {
	Field
}

// Optional marks a property of an [Object] as one which may be omitted.
// Outside of an object it has no effect.
func Optional(f Field) Field {
	return optionalField{Field: f}
}

func isOptional(f Field) bool {
	_, opt := f.(optionalField)
	return opt
}

// Property is a named member of an [Object].
type Property struct {
	Name  string
	Field Field
}

// Prop is shorthand for constructing a [Property].
func Prop(name string, f Field) Property {
	return Property{Name: name, Field: f}
}

type objectField struct {
	meta  Meta
	props []Property
}

// Object is a JSON object with exactly the given properties. Properties are
// required unless wrapped with [Optional], and unknown keys are rejected.
func Object(meta Meta, props ...Property) Field {
	return &objectField{meta: meta, props: props}
}

func (f *objectField) lookup(name string) (Field, bool) {
	for _, p := range f.props {
		if p.Name == name {
			return p.Field, true
		}
	}
	return nil, false
}

func (f *objectField) Validate(v any) Result {
	obj, isObject := v.(map[string]any)
	if !isObject {
		return mismatch("expected object")
	}

	for _, p := range f.props {
		val, present := obj[p.Name]
		if !present {
			if isOptional(p.Field) {
				continue
			}
			return mismatch("missing required property").at(p.Name)
		}

		res := p.Field.Validate(val)
		if !res.Matches {
			return res.at(p.Name)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if _, known := f.lookup(k); !known {
			return mismatch("unexpected property").at(k)
		}
	}
	return ok()
}

func (f *objectField) Schema() *openapi3.Schema {
	s := f.meta.apply(new(openapi3.Schema).WithType(openapi3.SchemaTypeObject))

	props := make(map[string]openapi3.SchemaOrRef, len(f.props))
	var required []string
	for _, p := range f.props {
		props[p.Name] = openapi3.SchemaOrRef{Schema: p.Field.Schema()}
		if !isOptional(p.Field) {
			required = append(required, p.Name)
		}
	}
	s.WithProperties(props)
	if len(required) > 0 {
		s.WithRequired(required...)
	}
	return s
}

type discriminatorField struct {
	meta     Meta
	key      string
	options  []Field
	byValue  map[string]Field
	accepted []string
}

// EnumDiscriminator is one of several objects, chosen by the value of the
// string property key. Every option must be an [Object] whose key property
// is a [String] with an [Enum].
func EnumDiscriminator(meta Meta, key string, options ...Field) Field {
	f := &discriminatorField{
		meta:    meta,
		key:     key,
		options: options,
		byValue: make(map[string]Field),
	}
	for _, opt := range options {
		obj, isObject := opt.(*objectField)
		if !isObject {
			panic("schema: enum discriminator options must be objects")
		}
		prop, found := obj.lookup(key)
		if !found {
			panic("schema: enum discriminator option is missing " + key)
		}
		str, isString := prop.(*stringField)
		if !isString || len(str.enum) == 0 {
			panic("schema: enum discriminator property must be a string enum")
		}
		for _, val := range str.enum {
			f.byValue[val] = opt
			f.accepted = append(f.accepted, val)
		}
	}
	return f
}

func (f *discriminatorField) Validate(v any) Result {
	obj, isObject := v.(map[string]any)
	if !isObject {
		return mismatch("expected object")
	}

	raw, present := obj[f.key]
	if !present {
		return mismatch("missing required property").at(f.key)
	}
	val, isString := raw.(string)
	if !isString {
		return mismatch("expected string").at(f.key)
	}
	opt, known := f.byValue[val]
	if !known {
		return mismatch("must be one of: %s", strings.Join(f.accepted, ", ")).at(f.key)
	}
	return opt.Validate(v)
}

func (f *discriminatorField) Schema() *openapi3.Schema {
	s := f.meta.apply(new(openapi3.Schema))

	oneOf := make([]openapi3.SchemaOrRef, len(f.options))
	for i, opt := range f.options {
		oneOf[i] = openapi3.SchemaOrRef{Schema: opt.Schema()}
	}
	s.WithOneOf(oneOf...)
	s.WithDiscriminator(openapi3.Discriminator{PropertyName: f.key})
	return s
}
