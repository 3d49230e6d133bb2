package console

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"unicode"
)

const (
	// MaxInputFields is the most words a single command may contain
	MaxInputFields = 128
	// RepeatMarker replays the previous input line
	RepeatMarker = "!!"
)

// ErrTooManyWords is fatal for the whole session
var ErrTooManyWords = fmt.Errorf("can not process over %d words: %w", MaxInputFields, syscall.E2BIG)

// ExitCode maps a session error to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 1
}

// Tokenizer splits input lines into words and remembers the last line for
// the repeat marker
type Tokenizer struct {
	limit   int
	last    string
	hasLast bool
}

// NewTokenizer returns a tokenizer accepting at most limit words per line
func NewTokenizer(limit int) *Tokenizer {
	if limit <= 0 {
		limit = MaxInputFields
	}
	return &Tokenizer{limit: limit}
}

// Tokenize splits line on whitespace and NUL bytes. The repeat marker
// substitutes the previous raw line; with no previous line it yields no
// words. ErrTooManyWords is returned when the line exceeds the limit.
func (t *Tokenizer) Tokenize(line string) ([]string, error) {
	if line == RepeatMarker {
		if !t.hasLast {
			return nil, nil
		}
		line = t.last
	} else {
		t.last = line
		t.hasLast = true
	}

	words := strings.FieldsFunc(line, func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
	if err := t.Check(words); err != nil {
		return nil, err
	}
	return words, nil
}

// Check applies the word limit to an already split command
func (t *Tokenizer) Check(words []string) error {
	if len(words) > t.limit {
		return ErrTooManyWords
	}
	return nil
}

// Last returns the stored raw line used by the repeat marker
func (t *Tokenizer) Last() (string, bool) {
	return t.last, t.hasLast
}
