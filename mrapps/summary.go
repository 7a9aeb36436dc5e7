package mrapps

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emptyOVO/yelpdp-go/record"
	"github.com/emptyOVO/yelpdp-go/worker"
)

const listSeparator = ", "

// SummaryMap emits, per business, its state with a partial summary
// {"count":1,"categories":{"<name>":1,...}}.
func SummaryMap(line string, ctx worker.MrContext) error {
	r, err := record.Parse(line)
	if err != nil {
		return err
	}
	state, err := r.String("state")
	if err != nil {
		return err
	}
	names, err := categoriesOf(r)
	if err != nil {
		return err
	}

	categories := record.New()
	for _, name := range names {
		categories.SetInt(name, 1)
	}
	value := record.New()
	value.SetInt("count", 1)
	value.SetObject("categories", categories)
	ctx.EmitIntermediate(state, value.Marshal())
	return nil
}

// categoriesOf reads the "categories" field. It is usually one
// comma-separated string; a JSON array of strings is accepted too. Absent
// or null categories yield none.
func categoriesOf(r *record.Record) ([]string, error) {
	raw, ok := r.Get("categories")
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var parts []string
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		parts = strings.Split(s, listSeparator)
	case '[':
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, fmt.Errorf("categories: %w", err)
		}
	default:
		return nil, fmt.Errorf("categories must be a string or list, got %s", raw)
	}
	names := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names, nil
}

// SummaryReduce sums the counts of one state and counts, per category, how
// many businesses carry it.
func SummaryReduce(key string, values []string, ctx worker.MrContext) error {
	total := 0
	histogram := newTally()
	for _, v := range values {
		r, err := record.Parse(v)
		if err != nil {
			return err
		}
		n, err := r.Int("count")
		if err != nil {
			return err
		}
		total += n
		if !r.Has("categories") {
			continue
		}
		categories, err := r.Object("categories")
		if err != nil {
			return err
		}
		// presence, not the mapped value, is what gets counted
		for _, name := range categories.Keys() {
			histogram.add(name)
		}
	}

	out := record.New()
	out.SetString("state", key)
	out.SetInt("count", total)
	out.SetObject("categories", histogram.record())
	ctx.Emit("", out.Marshal())
	return nil
}
