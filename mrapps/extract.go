package mrapps

import (
	"fmt"

	"github.com/emptyOVO/yelpdp-go/record"
	"github.com/emptyOVO/yelpdp-go/tagged"
	"github.com/emptyOVO/yelpdp-go/worker"
)

// ExtractBusinessMap marks a business id as one to keep.
func ExtractBusinessMap(line string, ctx worker.MrContext) error {
	r, err := record.Parse(line)
	if err != nil {
		return err
	}
	id, err := r.String("business_id")
	if err != nil {
		return err
	}
	ctx.EmitIntermediate(id, tagged.MarkerValue().Encode())
	return nil
}

// ExtractReviewMap keys a review by business id, keeping the line verbatim.
func ExtractReviewMap(line string, ctx worker.MrContext) error {
	r, err := record.Parse(line)
	if err != nil {
		return err
	}
	id, err := r.String("business_id")
	if err != nil {
		return err
	}
	ctx.EmitIntermediate(id, tagged.New(tagged.Review, line).Encode())
	return nil
}

// ExtractReduce emits every review of a business id that carries the
// marker, and nothing otherwise.
func ExtractReduce(key string, values []string, ctx worker.MrContext) error {
	reviews := make([]string, 0, len(values))
	matched := false
	for _, s := range values {
		v, err := tagged.Decode(s)
		if err != nil {
			return err
		}
		switch v.Origin {
		case tagged.Marker:
			matched = true
		case tagged.Review:
			reviews = append(reviews, v.Payload)
		default:
			return fmt.Errorf("unexpected %s value for business %s", v.Origin, key)
		}
	}
	if !matched {
		return nil
	}
	for _, review := range reviews {
		ctx.Emit("", review)
	}
	return nil
}
