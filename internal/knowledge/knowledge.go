// Package knowledge looks up knowledge-base articles relevant to an inbound message.
// Lookups never fail the caller: a database error is the Unavailable outcome.
package knowledge

import (
	"context"
	"strings"
	"unicode"
)

// Status is the outcome of a lookup.
type Status string

const (
	StatusFound       Status = "found"
	StatusEmpty       Status = "empty"
	StatusUnavailable Status = "unavailable"
)

// DefaultLimit caps the number of articles returned.
const DefaultLimit = 5

const entrySeparator = "\n---\n"

// Result carries the articles found, or names why there are none.
type Result struct {
	Status  Status
	Entries []string
	// Err is set only for StatusUnavailable.
	Err error
}

// Empty is the result for lookups that matched nothing.
var Empty = Result{Status: StatusEmpty}

// Unavailable wraps a lookup failure.
func Unavailable(err error) Result {
	return Result{Status: StatusUnavailable, Err: err}
}

// Found returns a found result, or Empty when entries is empty.
func Found(entries []string) Result {
	if len(entries) == 0 {
		return Empty
	}
	return Result{Status: StatusFound, Entries: entries}
}

// Context renders the entries for a prompt. Empty and unavailable results render as "".
func (r Result) Context() string {
	if r.Status != StatusFound {
		return ""
	}
	return strings.Join(r.Entries, entrySeparator)
}

// Article is one knowledge-base entry.
type Article struct {
	ID       string
	Title    string
	Content  string
	Category string
}

// Searcher finds articles for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) Result
}

var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "could": true, "would": true, "should": true,
	"there": true, "their": true, "these": true, "those": true, "which": true, "where": true,
	"while": true, "with": true, "have": true, "this": true, "that": true, "from": true,
	"your": true, "what": true, "when": true, "please": true, "thanks": true, "hello": true,
	"just": true, "want": true, "need": true, "does": true, "been": true, "into": true,
}

// Keywords extracts up to max lower-cased search terms of at least four letters, in order of
// first appearance, without stopwords or repeats.
func Keywords(text string, max int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, max)
	for _, f := range fields {
		if len([]rune(f)) < 4 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == max {
			break
		}
	}
	return out
}
