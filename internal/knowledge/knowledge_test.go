package knowledge

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"omnichannel-support/internal/db/dbtest"
)

func TestKeywords(t *testing.T) {
	testCases := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"basic", "How do I reset my Password?", 8, []string{"reset", "password"}},
		{"dedupe and stopwords", "Please reset, RESET the password please", 8, []string{"reset", "password"}},
		{"limit", "alpha bravo charlie delta", 2, []string{"alpha", "bravo"}},
		{"nothing usable", "hi, is it ok?", 8, []string{}},
		{"digits kept", "error 5003 on invoice", 8, []string{"error", "5003", "invoice"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Keywords(tc.text, tc.max)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Keywords = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResult_Context(t *testing.T) {
	if got := Empty.Context(); got != "" {
		t.Errorf("Empty.Context = %q, want empty", got)
	}
	if got := Unavailable(errors.New("db down")).Context(); got != "" {
		t.Errorf("Unavailable.Context = %q, want empty", got)
	}
	r := Found([]string{"a", "b"})
	if r.Status != StatusFound {
		t.Errorf("Status = %s, want found", r.Status)
	}
	if got := r.Context(); got != "a\n---\nb" {
		t.Errorf("Context = %q, want joined entries", got)
	}
	if got := Found(nil); got.Status != StatusEmpty {
		t.Errorf("Found(nil).Status = %s, want empty", got.Status)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike = %q", got)
	}
}

func TestPostgresStore_SearchAndUpsert(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	store := NewPostgresStore(conn, 0)
	marker := "zq" + uuid.NewString()[:8]

	if err := store.Upsert(ctx, Article{ID: uuid.NewString(), Title: "Guide " + marker, Content: "Use the " + marker + " flow", Category: "how-to"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, Article{ID: uuid.NewString(), Title: "Guide " + marker, Content: "Updated " + marker + " flow"}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	r := store.Search(ctx, "how does the "+marker+" work")
	if r.Status != StatusFound {
		t.Fatalf("Status = %s (%v), want found", r.Status, r.Err)
	}
	if len(r.Entries) != 1 || r.Entries[0] != "Updated "+marker+" flow" {
		t.Errorf("Entries = %v, want the updated article once", r.Entries)
	}

	if r := store.Search(ctx, "ok"); r.Status != StatusEmpty {
		t.Errorf("Search without keywords = %s, want empty", r.Status)
	}
}
