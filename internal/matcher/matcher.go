// Package matcher implements the closed set of message match strategies a
// reply rule can use.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

type MatchType string

const (
	MatchExact      MatchType = "EXACT"
	MatchContains   MatchType = "CONTAINS"
	MatchRegex      MatchType = "REGEX"
	MatchPrefix     MatchType = "PREFIX"
	MatchSuffix     MatchType = "SUFFIX"
	MatchStatistics MatchType = "STATISTICS"
)

var (
	ErrInvalidPattern   = errors.New("invalid regex pattern")
	ErrUnknownMatchType = errors.New("unknown match type")
)

func (t MatchType) Valid() bool {
	switch t {
	case MatchExact, MatchContains, MatchRegex, MatchPrefix, MatchSuffix, MatchStatistics:
		return true
	}
	return false
}

// Match reports whether text satisfies pattern under t. EXACT compares
// case-sensitively; CONTAINS, PREFIX and SUFFIX ignore case. STATISTICS
// matches every message.
func Match(t MatchType, text, pattern string) (bool, error) {
	switch t {
	case MatchExact:
		return text == pattern, nil
	case MatchContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(pattern)), nil
	case MatchPrefix:
		return strings.HasPrefix(strings.ToLower(text), strings.ToLower(pattern)), nil
	case MatchSuffix:
		return strings.HasSuffix(strings.ToLower(text), strings.ToLower(pattern)), nil
	case MatchRegex:
		re, err := compile(pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(text), nil
	case MatchStatistics:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownMatchType, string(t))
	}
}

type compiled struct {
	re  *regexp.Regexp
	err error
}

// patterns caches compiled expressions by source, including failures, so
// a bad pattern is only compiled once.
var patterns sync.Map

func compile(pattern string) (*regexp.Regexp, error) {
	if c, ok := patterns.Load(pattern); ok {
		entry := c.(compiled)
		return entry.re, entry.err
	}

	re, err := regexp.Compile(pattern)
	entry := compiled{re: re}
	if err != nil {
		entry = compiled{err: fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)}
	}

	actual, _ := patterns.LoadOrStore(pattern, entry)
	c := actual.(compiled)
	return c.re, c.err
}

// Validate checks that pattern is usable with t without matching anything.
func Validate(t MatchType, pattern string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMatchType, string(t))
	}
	if t == MatchRegex {
		_, err := compile(pattern)
		return err
	}
	return nil
}
