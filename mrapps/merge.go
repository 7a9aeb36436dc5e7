// Package mrapps holds the map and reduce functions of the Yelp dataset
// jobs.
package mrapps

import (
	"github.com/emptyOVO/yelpdp-go/record"
	"github.com/emptyOVO/yelpdp-go/worker"
)

// MergeMapper keys every record by its mergeKey field and passes the raw
// line through untagged.
func MergeMapper(mergeKey string) worker.MapFormat {
	return func(line string, ctx worker.MrContext) error {
		r, err := record.Parse(line)
		if err != nil {
			return err
		}
		key, err := r.String(mergeKey)
		if err != nil {
			return err
		}
		ctx.EmitIntermediate(key, line)
		return nil
	}
}

// MergeReduce emits the union of all fields of the grouped records. When two
// records share a field the one processed later wins.
func MergeReduce(key string, values []string, ctx worker.MrContext) error {
	if len(values) == 1 {
		ctx.Emit("", values[0])
		return nil
	}
	merged := record.New()
	for _, v := range values {
		r, err := record.Parse(v)
		if err != nil {
			return err
		}
		merged.Merge(r)
	}
	ctx.Emit("", merged.Marshal())
	return nil
}
