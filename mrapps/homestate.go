package mrapps

import (
	"fmt"
	"strings"

	"github.com/emptyOVO/yelpdp-go/record"
	"github.com/emptyOVO/yelpdp-go/tagged"
	"github.com/emptyOVO/yelpdp-go/worker"
	log "github.com/sirupsen/logrus"
)

// Stage 1: visited users by business.

// VisitedBusinessMap emits (business_id, "business, <state>").
func VisitedBusinessMap(line string, ctx worker.MrContext) error {
	r, err := record.Parse(line)
	if err != nil {
		return err
	}
	id, err := r.String("business_id")
	if err != nil {
		return err
	}
	state, err := r.String("state")
	if err != nil {
		return err
	}
	ctx.EmitIntermediate(id, tagged.New(tagged.Business, state).Encode())
	return nil
}

// VisitedReviewMap emits (business_id, "review, <user_id>").
func VisitedReviewMap(line string, ctx worker.MrContext) error {
	r, err := record.Parse(line)
	if err != nil {
		return err
	}
	id, err := r.String("business_id")
	if err != nil {
		return err
	}
	user, err := r.String("user_id")
	if err != nil {
		return err
	}
	ctx.EmitIntermediate(id, tagged.New(tagged.Review, user).Encode())
	return nil
}

// VisitedUsersReduce emits {business_id, state, visited_users}. The state
// stays empty when no business record shares the key.
func VisitedUsersReduce(key string, values []string, ctx worker.MrContext) error {
	state := ""
	var users []string
	for _, s := range values {
		v, err := tagged.Decode(s)
		if err != nil {
			log.WithError(err).Warnf("[VisitedUsers] skip value of business %s", key)
			continue
		}
		switch v.Origin {
		case tagged.Business:
			state = v.Payload
		case tagged.Review:
			users = append(users, v.Payload)
		default:
			log.Warnf("[VisitedUsers] skip %s value of business %s", v.Origin, key)
		}
	}

	out := record.New()
	out.SetString("business_id", key)
	out.SetString("state", state)
	out.SetString("visited_users", strings.Join(users, listSeparator))
	ctx.Emit("", out.Marshal())
	return nil
}

// Stage 2: users' home state.

// HomeStateUserMap emits (user_id, "user, <record without friends>").
func HomeStateUserMap(line string, ctx worker.MrContext) error {
	r, err := record.Parse(line)
	if err != nil {
		return err
	}
	id, err := r.String("user_id")
	if err != nil {
		return err
	}
	r.Delete("friends")
	ctx.EmitIntermediate(id, tagged.Of(tagged.User, r).Encode())
	return nil
}

// HomeStateVisitsMap fans a stage 1 record out to one (user_id,
// "job1, <state>") pair per visit.
func HomeStateVisitsMap(line string, ctx worker.MrContext) error {
	r, err := record.Parse(line)
	if err != nil {
		return err
	}
	state, err := r.String("state")
	if err != nil {
		return err
	}
	visited, err := r.String("visited_users")
	if err != nil {
		return err
	}
	for _, user := range strings.Split(visited, listSeparator) {
		if user = strings.TrimSpace(user); user == "" {
			continue
		}
		ctx.EmitIntermediate(user, tagged.New(tagged.Job1Result, state).Encode())
	}
	return nil
}

// HomeStateReduce adds home_state, the state the user reviewed most, to the
// user record. Users without reviews, and visits without a user record,
// produce nothing.
func HomeStateReduce(key string, values []string, ctx worker.MrContext) error {
	var user *record.Record
	states := newTally()
	for _, s := range values {
		v, err := tagged.Decode(s)
		if err != nil {
			return err
		}
		switch v.Origin {
		case tagged.User:
			r, err := v.Record()
			if err != nil {
				return err
			}
			if user == nil {
				user = r
			} else {
				user.Merge(r)
			}
		case tagged.Job1Result:
			states.add(v.Payload)
		default:
			return fmt.Errorf("unexpected %s value for user %s", v.Origin, key)
		}
	}
	if user == nil || states.len() == 0 {
		return nil
	}
	home, _ := states.majority()
	user.SetString("home_state", home)
	ctx.Emit("", user.Marshal())
	return nil
}
