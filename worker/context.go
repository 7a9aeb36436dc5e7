package worker

// KV is one emitted key/value pair.
type KV struct {
	Key   string
	Value string
}

// MrContext receives the output of map and reduce functions.
type MrContext interface {
	// EmitIntermediate sends a pair from a mapper to the grouping step.
	EmitIntermediate(key, value string)
	// Emit writes a final output line from a reducer. An empty key writes
	// the value alone.
	Emit(key, value string)
}

// MapFormat maps one input line.
type MapFormat func(line string, ctx MrContext) error

// ReduceFormat reduces every value grouped under key.
type ReduceFormat func(key string, values []string, ctx MrContext) error

// Collector is an in-memory MrContext scoped to one task.
type Collector struct {
	intermediate []KV
	output       []KV
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) EmitIntermediate(key, value string) {
	c.intermediate = append(c.intermediate, KV{Key: key, Value: value})
}

func (c *Collector) Emit(key, value string) {
	c.output = append(c.output, KV{Key: key, Value: value})
}

// Intermediate returns the pairs emitted by mappers.
func (c *Collector) Intermediate() []KV {
	return c.intermediate
}

// Output returns the pairs emitted by reducers.
func (c *Collector) Output() []KV {
	return c.output
}

// Values returns the values of every reducer output, in emit order.
func (c *Collector) Values() []string {
	out := make([]string, 0, len(c.output))
	for _, kv := range c.output {
		out = append(out, kv.Value)
	}
	return out
}

func (c *Collector) reset() {
	c.intermediate = c.intermediate[:0]
	c.output = c.output[:0]
}

type byKey []KV

func (a byKey) Len() int           { return len(a) }
func (a byKey) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byKey) Less(i, j int) bool { return a[i].Key < a[j].Key }
