// Package tagged carries heterogeneous per-source payloads through the
// grouping step as plain text values.
//
// On the wire a value is "<tag>, <payload>". The marker origin has no
// payload and is sent as the bare tag.
package tagged

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emptyOVO/yelpdp-go/record"
)

// Origin names the dataset a value was produced from.
type Origin int

const (
	Business Origin = iota + 1
	Review
	User
	Job1Result
	Marker
)

const separator = ", "

var tags = map[Origin]string{
	Business:   "business",
	Review:     "review",
	User:       "user",
	Job1Result: "job1",
	Marker:     "us_business",
}

// ErrUnknownOrigin is returned when a wire value carries an unknown tag.
var ErrUnknownOrigin = errors.New("unknown origin tag")

func (o Origin) String() string {
	if t, ok := tags[o]; ok {
		return t
	}
	return fmt.Sprintf("Origin(%d)", int(o))
}

// ParseOrigin maps a wire tag back to its origin.
func ParseOrigin(tag string) (Origin, error) {
	for o, t := range tags {
		if t == tag {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOrigin, tag)
}

// Value is one tagged intermediate value.
type Value struct {
	Origin  Origin
	Payload string
}

// New tags a literal payload.
func New(origin Origin, payload string) Value {
	return Value{Origin: origin, Payload: payload}
}

// Of tags a serialized record.
func Of(origin Origin, r *record.Record) Value {
	return Value{Origin: origin, Payload: r.Marshal()}
}

// MarkerValue is the payload-less existence marker.
func MarkerValue() Value {
	return Value{Origin: Marker}
}

// Encode renders the wire form.
func (v Value) Encode() string {
	tag := tags[v.Origin]
	if v.Origin == Marker {
		return tag
	}
	return tag + separator + v.Payload
}

// Record parses the payload as a JSON record.
func (v Value) Record() (*record.Record, error) {
	return record.Parse(v.Payload)
}

// Decode parses the wire form. Only the first separator splits the tag from
// the payload, so a payload may itself contain ", ".
func Decode(s string) (Value, error) {
	if s == tags[Marker] {
		return MarkerValue(), nil
	}
	i := strings.Index(s, separator)
	if i < 0 {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownOrigin, s)
	}
	origin, err := ParseOrigin(s[:i])
	if err != nil {
		return Value{}, err
	}
	if origin == Marker {
		return Value{}, fmt.Errorf("marker value carries a payload: %q", s)
	}
	return Value{Origin: origin, Payload: s[i+len(separator):]}, nil
}
