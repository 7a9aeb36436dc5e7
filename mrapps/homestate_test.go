package mrapps

import (
	"testing"

	"github.com/emptyOVO/yelpdp-go/worker"
)

func TestVisitedUsersReduce(t *testing.T) {
	groups := mapAll(t, VisitedReviewMap,
		`{"review_id":"r1","business_id":"b1","user_id":"u1"}`,
		`{"review_id":"r2","business_id":"b1","user_id":"u2"}`,
	)
	business := mapAll(t, VisitedBusinessMap, `{"business_id":"b1","state":"CA"}`)
	values := append(groups["b1"], business["b1"]...)

	ctx := worker.NewCollector()
	if err := VisitedUsersReduce("b1", values, ctx); err != nil {
		t.Fatal(err)
	}
	want := `{"business_id":"b1","state":"CA","visited_users":"u1, u2"}`
	if got := ctx.Values()[0]; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestVisitedUsersWithoutBusiness(t *testing.T) {
	ctx := worker.NewCollector()
	if err := VisitedUsersReduce("b9", []string{"review, u1", "bogus"}, ctx); err != nil {
		t.Fatal(err)
	}
	want := `{"business_id":"b9","state":"","visited_users":"u1"}`
	if got := ctx.Values()[0]; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestHomeStateMajority(t *testing.T) {
	visits := mapAll(t, HomeStateVisitsMap,
		`{"business_id":"b1","state":"CA","visited_users":"u1, u2"}`,
		`{"business_id":"b2","state":"CA","visited_users":"u1"}`,
		`{"business_id":"b3","state":"NV","visited_users":"u1"}`,
		`{"business_id":"b4","state":"NV","visited_users":""}`,
	)
	users := mapAll(t, HomeStateUserMap,
		`{"user_id":"u1","name":"Ann","friends":"u2, u3"}`,
		`{"user_id":"u3","name":"Cid"}`,
	)
	if len(visits["u1"]) != 3 || len(visits["u2"]) != 1 {
		t.Fatalf("unexpected fan out %v", visits)
	}

	ctx := worker.NewCollector()
	values := append([]string{visits["u1"][2]}, users["u1"]...)
	values = append(values, visits["u1"][:2]...)
	if err := HomeStateReduce("u1", values, ctx); err != nil {
		t.Fatal(err)
	}
	want := `{"user_id":"u1","name":"Ann","home_state":"CA"}`
	if got := ctx.Values(); len(got) != 1 || got[0] != want {
		t.Fatalf("expected %s, got %v", want, got)
	}

	// u2 has visits but no user record, u3 has a record but no visits.
	for _, id := range []string{"u2", "u3"} {
		ctx := worker.NewCollector()
		if err := HomeStateReduce(id, append(visits[id], users[id]...), ctx); err != nil {
			t.Fatal(err)
		}
		if len(ctx.Values()) != 0 {
			t.Fatalf("expected no output for %s, got %v", id, ctx.Values())
		}
	}
}

func TestHomeStateTieFirstSeenWins(t *testing.T) {
	user := `user, {"user_id":"u1"}`
	cases := []struct {
		values []string
		want   string
	}{
		{[]string{user, "job1, NV", "job1, CA", "job1, CA", "job1, NV"}, "NV"},
		{[]string{"job1, CA", user, "job1, NV"}, "CA"},
		{[]string{"job1, AZ", "job1, CA", "job1, CA", user}, "CA"},
	}
	for _, c := range cases {
		ctx := worker.NewCollector()
		if err := HomeStateReduce("u1", c.values, ctx); err != nil {
			t.Fatal(err)
		}
		want := `{"user_id":"u1","home_state":"` + c.want + `"}`
		if got := ctx.Values()[0]; got != want {
			t.Fatalf("values %v: expected %s, got %s", c.values, want, got)
		}
	}
}

func TestTally(t *testing.T) {
	tl := newTally()
	for _, s := range []string{"b", "a", "b", "a", "c"} {
		tl.add(s)
	}
	if name, n := tl.majority(); name != "b" || n != 2 {
		t.Fatalf("expected b=2, got %s=%d", name, n)
	}
	if got := tl.record().Marshal(); got != `{"b":2,"a":2,"c":1}` {
		t.Fatalf("unexpected record %s", got)
	}
}
