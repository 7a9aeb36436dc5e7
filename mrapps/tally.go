package mrapps

import "github.com/emptyOVO/yelpdp-go/record"

// tally counts names and remembers the order they were first seen in. It
// lives for one reduce call only.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(name string) {
	if _, ok := t.counts[name]; !ok {
		t.order = append(t.order, name)
	}
	t.counts[name]++
}

func (t *tally) len() int {
	return len(t.order)
}

// majority returns the name with the strictly greatest count. On a tie the
// name seen first wins.
func (t *tally) majority() (string, int) {
	best, bestN := "", 0
	for _, name := range t.order {
		if n := t.counts[name]; n > bestN {
			best, bestN = name, n
		}
	}
	return best, bestN
}

func (t *tally) record() *record.Record {
	r := record.New()
	for _, name := range t.order {
		r.SetInt(name, t.counts[name])
	}
	return r
}
