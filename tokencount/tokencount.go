// Package tokencount provides the token accounting shared by the buffer,
// the consolidation pipeline's truncation rule, the LLM gateway's usage
// tracking, and the context composer's budget math, backed by
// github.com/pkoukk/tiktoken-go.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for a fixed encoding. It is safe for concurrent use.
type Counter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// DefaultEncoding is the encoding used when no model-specific encoding is
// configured; it matches the teacher-adjacent OpenAI chat models this
// gateway targets.
const DefaultEncoding = "cl100k_base"

// NewCounter builds a Counter for the named tiktoken encoding.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &Counter{enc: enc}, nil
}

// MustDefault builds a Counter for DefaultEncoding, panicking if tiktoken's
// bundled encoding table is missing it — a programmer/packaging error, not
// a data error.
func MustDefault() *Counter {
	c, err := NewCounter(DefaultEncoding)
	if err != nil {
		panic(err)
	}
	return c
}

// Count returns the number of tokens text encodes to.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

// CountAll sums Count across texts.
func (c *Counter) CountAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}

// Sized carries one item's precomputed token size. NewestWithinBudget
// takes plain []int sizes, not Sized values.
type Sized struct {
	TokenSize int
}

// NewestWithinBudget returns the smallest start index such that the sum of
// sizes[start:] is <= limit, i.e. the newest suffix (assuming sizes is
// ordered oldest-first) whose aggregate cost fits the budget. If even the
// single newest item exceeds limit, it returns len(sizes) (keep nothing);
// callers that require at least one item treat that as EmptyBatch.
func NewestWithinBudget(sizes []int, limit int) int {
	total := 0
	start := len(sizes)
	for i := len(sizes) - 1; i >= 0; i-- {
		if total+sizes[i] > limit {
			break
		}
		total += sizes[i]
		start = i
	}
	return start
}
