// Package records holds the tagged-value parsers for the DNS TXT records used
// in email authentication. Every parser returns a Parsed value which is either
// Ok (the record is well formed) or Malformed (present but broken, with a
// reason), so callers never have to infer validity from a bare boolean.
package records

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("records: malformed record")

// Parsed is the outcome of parsing one record.
type Parsed[T any] struct {
	Record T
	Err    error
}

// Ok wraps a well-formed record.
func Ok[T any](r T) Parsed[T] {
	return Parsed[T]{Record: r}
}

// Malformed wraps a record that is present but does not parse. Whatever could
// be extracted before the failure is kept in Record.
func Malformed[T any](r T, format string, args ...any) Parsed[T] {
	return Parsed[T]{Record: r, Err: fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))}
}

// Valid reports whether the record parsed cleanly.
func (p Parsed[T]) Valid() bool {
	return p.Err == nil
}

// Reason is the human-readable parse failure, or "" when valid.
func (p Parsed[T]) Reason() string {
	if p.Err == nil {
		return ""
	}
	return strings.TrimPrefix(p.Err.Error(), ErrMalformed.Error()+": ")
}

// Tag is a single name=value pair from a tag-list record (DKIM, DMARC).
type Tag struct {
	Name  string
	Value string
}

// tagList splits a "name=value; name=value" record. Names are lower-cased,
// values are trimmed. Empty segments (a trailing ";") are allowed.
func tagList(s string) ([]Tag, map[string]string, error) {
	var tags []Tag
	byName := map[string]string{}

	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, value, ok := strings.Cut(seg, "=")
		if !ok {
			return tags, byName, fmt.Errorf("tag %q has no value", seg)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return tags, byName, fmt.Errorf("empty tag name in %q", seg)
		}
		if _, dup := byName[name]; dup {
			return tags, byName, fmt.Errorf("duplicate tag %q", name)
		}
		value = strings.TrimSpace(value)
		tags = append(tags, Tag{Name: name, Value: value})
		byName[name] = value
	}
	return tags, byName, nil
}

// normalizeTXT joins whitespace runs and strips the quotes some resolvers
// leave around character-strings.
func normalizeTXT(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "\"")
	return strings.Join(strings.Fields(s), " ")
}
