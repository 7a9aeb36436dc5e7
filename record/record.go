// Package record parses and serializes line-delimited JSON objects.
//
// A Record keeps its fields in input order and stores every value as raw
// JSON text, so re-serializing a parsed line never rewrites characters such
// as <, > or ' into escape sequences.
package record

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// Record is an ordered JSON object.
type Record struct {
	keys   []string
	fields map[string]json.RawMessage
}

// New returns an empty record.
func New() *Record {
	return &Record{fields: make(map[string]json.RawMessage)}
}

// Parse decodes one JSON object line.
func Parse(line string) (*Record, error) {
	r, err := parse([]byte(line))
	if err != nil {
		return nil, &MalformedRecordError{Line: line, Err: err}
	}
	return r, nil
}

func parse(b []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	r := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		compacted, err := compact(raw)
		if err != nil {
			return nil, err
		}
		r.Set(name, compacted)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return r, nil
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Has reports whether the field is present.
func (r *Record) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Get returns the raw JSON value of a field.
func (r *Record) Get(name string) (json.RawMessage, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// String returns a field as text. JSON strings are unquoted, numbers and
// booleans are returned in their literal form. A missing or null field is a
// *MissingKeyError.
func (r *Record) String(name string) (string, error) {
	raw, ok := r.fields[name]
	if !ok || string(raw) == "null" {
		return "", &MissingKeyError{Field: name}
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// Int returns a numeric field.
func (r *Record) Int(name string) (int, error) {
	s, err := r.String(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

// Object returns a nested object field as a record.
func (r *Record) Object(name string) (*Record, error) {
	raw, ok := r.fields[name]
	if !ok || string(raw) == "null" {
		return nil, &MissingKeyError{Field: name}
	}
	return parse(raw)
}

// Set stores a raw JSON value. An existing field keeps its position.
func (r *Record) Set(name string, raw json.RawMessage) {
	if _, ok := r.fields[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.fields[name] = raw
}

// SetString stores a string field.
func (r *Record) SetString(name, value string) {
	r.Set(name, json.RawMessage(quote(value)))
}

// SetInt stores an integer field.
func (r *Record) SetInt(name string, value int) {
	r.Set(name, json.RawMessage(strconv.Itoa(value)))
}

// SetObject stores a nested record.
func (r *Record) SetObject(name string, value *Record) {
	r.Set(name, json.RawMessage(value.Marshal()))
}

// Delete removes a field if present.
func (r *Record) Delete(name string) {
	if _, ok := r.fields[name]; !ok {
		return
	}
	delete(r.fields, name)
	for i, k := range r.keys {
		if k == name {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Merge copies every field of other into r. Fields already present in r
// are overwritten.
func (r *Record) Merge(other *Record) {
	for _, k := range other.keys {
		r.Set(k, other.fields[k])
	}
}

// Equal reports whether both records hold the same fields in the same order
// with identical values.
func (r *Record) Equal(other *Record) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k {
			return false
		}
		if !bytes.Equal(r.fields[k], other.fields[k]) {
			return false
		}
	}
	return true
}

// Marshal serializes the record as one compact JSON object.
func (r *Record) Marshal() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(k))
		b.WriteByte(':')
		b.Write(r.fields[k])
	}
	b.WriteByte('}')
	return b.String()
}

// quote encodes s as a JSON string without HTML escaping.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
