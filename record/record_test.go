package record

import (
	"errors"
	"testing"
)

func TestParseKeepsOrderAndCharacters(t *testing.T) {
	line := `{"text":"<b>it's</b> > ok","stars":4.5,"tags":["a", "b"],"attrs":{"x": null}}`
	r, err := Parse(line)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	keys := r.Keys()
	want := []string{"text", "stars", "tags", "attrs"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}
	out := r.Marshal()
	expected := `{"text":"<b>it's</b> > ok","stars":4.5,"tags":["a","b"],"attrs":{"x":null}}`
	if out != expected {
		t.Fatalf("unexpected serialization:\n%s\n%s", out, expected)
	}
}

func TestRoundTrip(t *testing.T) {
	lines := []string{
		`{}`,
		`{"a":"x<y>z'"}`,
		`{"business_id":"b1","state":"CA","categories":null,"n":-3,"ok":true}`,
		`{"nested":{"deep":{"k":[1,{"v":"'"}]}}}`,
	}
	for _, line := range lines {
		first, err := Parse(line)
		if err != nil {
			t.Fatalf("parse %s: %v", line, err)
		}
		second, err := Parse(first.Marshal())
		if err != nil {
			t.Fatalf("reparse %s: %v", line, err)
		}
		if !first.Equal(second) {
			t.Fatalf("round trip changed record: %s -> %s", first.Marshal(), second.Marshal())
		}
		if second.Marshal() != line {
			t.Fatalf("expected %s, got %s", line, second.Marshal())
		}
	}
}

func TestParseMalformed(t *testing.T) {
	for _, line := range []string{"", "not json", `["a"]`, `{"a":1`, `{"a":1} {"b":2}`, `"str"`} {
		_, err := Parse(line)
		var malformed *MalformedRecordError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedRecordError for %q, got %v", line, err)
		}
	}
}

func TestStringMissingAndNull(t *testing.T) {
	r, err := Parse(`{"a":null,"n":12,"s":"v"}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"a", "missing"} {
		_, err := r.String(field)
		var missing *MissingKeyError
		if !errors.As(err, &missing) || missing.Field != field {
			t.Fatalf("expected MissingKeyError for %q, got %v", field, err)
		}
	}
	if s, _ := r.String("n"); s != "12" {
		t.Fatalf("expected numeric literal, got %q", s)
	}
	if s, _ := r.String("s"); s != "v" {
		t.Fatalf("expected unquoted string, got %q", s)
	}
}

func TestSetMergeDelete(t *testing.T) {
	a, _ := Parse(`{"id":"k","x":1,"friends":"u2, u3"}`)
	b, _ := Parse(`{"id":"k","x":2,"y":"<"}`)
	a.Merge(b)
	a.Delete("friends")
	a.SetString("home_state", "NV")
	want := `{"id":"k","x":2,"y":"<","home_state":"NV"}`
	if got := a.Marshal(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	a.Delete("absent")
	if a.Len() != 4 {
		t.Fatalf("expected 4 fields, got %d", a.Len())
	}
}

func TestObject(t *testing.T) {
	r, _ := Parse(`{"categories":{"Coffee":1,"Bar":1}}`)
	c, err := r.Object("categories")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Int("Coffee"); n != 1 || c.Len() != 2 {
		t.Fatalf("unexpected nested object %s", c.Marshal())
	}
	nested := New()
	nested.SetInt("Coffee", 2)
	out := New()
	out.SetObject("categories", nested)
	if got := out.Marshal(); got != `{"categories":{"Coffee":2}}` {
		t.Fatalf("unexpected %s", got)
	}
}
