package worker

import (
	"fmt"
	"testing"
)

func TestReducerForKeyStable(t *testing.T) {
	for _, key := range []string{"CA", "b1", "", "a\tb"} {
		first := reducerForKey(key, 8)
		for i := 0; i < 50; i++ {
			if got := reducerForKey(key, 8); got != first {
				t.Fatalf("reducer for %q moved: %d != %d", key, got, first)
			}
		}
	}
}

func TestReducerForKeyRange(t *testing.T) {
	keys := []string{"", "CA", "NV", "TX", "business_id", "b1", "u-42", "a\tb", "x\ny"}
	for _, n := range []int{1, 2, 7, 8} {
		for _, key := range keys {
			got := reducerForKey(key, n)
			if got < 0 || got >= n {
				t.Fatalf("reducer for %q out of range [0,%d): %d", key, n, got)
			}
		}
	}
}

func TestReducerForKeySingleReducer(t *testing.T) {
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("b%d", i)
		if got := reducerForKey(key, 1); got != 0 {
			t.Fatalf("key %q sent to reducer %d with one reducer", key, got)
		}
	}
	if got := reducerForKey("", 1); got != 0 {
		t.Fatalf("empty key sent to reducer %d with one reducer", got)
	}
}

func TestReducerForKeySpreads(t *testing.T) {
	const n = 4
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		seen[reducerForKey(fmt.Sprintf("b%d", i), n)] = true
	}
	if len(seen) != n {
		t.Fatalf("200 keys landed in only %d of %d reducers", len(seen), n)
	}
}

func TestReducerForKeyPanicsWithoutReducers(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero reducers")
		}
	}()
	reducerForKey("CA", 0)
}
