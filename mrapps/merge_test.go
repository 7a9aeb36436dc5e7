package mrapps

import (
	"errors"
	"testing"

	"github.com/emptyOVO/yelpdp-go/record"
	"github.com/emptyOVO/yelpdp-go/worker"
)

func mustParse(t *testing.T, line string) *record.Record {
	t.Helper()
	r, err := record.Parse(line)
	if err != nil {
		t.Fatalf("parse %s: %v", line, err)
	}
	return r
}

func TestMergeMapperKeysByField(t *testing.T) {
	ctx := worker.NewCollector()
	line := `{"business_id":"b1","name":"Tom's <Diner>"}`
	if err := MergeMapper("business_id")(line, ctx); err != nil {
		t.Fatal(err)
	}
	kvs := ctx.Intermediate()
	if len(kvs) != 1 || kvs[0].Key != "b1" || kvs[0].Value != line {
		t.Fatalf("unexpected intermediate %v", kvs)
	}
}

func TestMergeMapperMissingKey(t *testing.T) {
	err := MergeMapper("business_id")(`{"name":"x"}`, worker.NewCollector())
	var missing *record.MissingKeyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingKeyError, got %v", err)
	}
	err = MergeMapper("business_id")(`{broken`, worker.NewCollector())
	var malformed *record.MalformedRecordError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
}

func TestMergeReduceUnionIndependentOfOrder(t *testing.T) {
	a := `{"business_id":"b1","name":"Cafe"}`
	b := `{"business_id":"b1","stars":4.5,"city":"Reno"}`
	for _, values := range [][]string{{a, b}, {b, a}} {
		ctx := worker.NewCollector()
		if err := MergeReduce("b1", values, ctx); err != nil {
			t.Fatal(err)
		}
		out := ctx.Values()
		if len(out) != 1 {
			t.Fatalf("expected one output, got %v", out)
		}
		merged := mustParse(t, out[0])
		for _, f := range []string{"business_id", "name", "stars", "city"} {
			if !merged.Has(f) {
				t.Fatalf("merged record %s lacks %q", out[0], f)
			}
		}
		if merged.Len() != 4 {
			t.Fatalf("expected 4 fields, got %s", out[0])
		}
	}
}

func TestMergeReduceConflictKeepsOneValue(t *testing.T) {
	ctx := worker.NewCollector()
	values := []string{`{"id":"k","f":"first"}`, `{"id":"k","f":"second"}`}
	if err := MergeReduce("k", values, ctx); err != nil {
		t.Fatal(err)
	}
	merged := mustParse(t, ctx.Values()[0])
	f, err := merged.String("f")
	if err != nil {
		t.Fatal(err)
	}
	if f != "first" && f != "second" {
		t.Fatalf("unexpected value %q", f)
	}
	if merged.Len() != 2 {
		t.Fatalf("expected exactly one f, got %s", merged.Marshal())
	}
}

func TestMergeReduceSingleUnchanged(t *testing.T) {
	ctx := worker.NewCollector()
	line := `{"id":"k",  "text":"<it's>"}`
	if err := MergeReduce("k", []string{line}, ctx); err != nil {
		t.Fatal(err)
	}
	if out := ctx.Values(); len(out) != 1 || out[0] != line {
		t.Fatalf("expected line unchanged, got %v", out)
	}
}
