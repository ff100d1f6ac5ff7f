package scenario

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/feedhandlers/fhtest/internal/errors"
)

// StepFunc executes a step. args holds the pattern's capture groups.
type StepFunc func(w *World, args []string) error

// StepDef binds a step pattern to its implementation.
type StepDef struct {
	Pattern *regexp.Regexp
	Fn      StepFunc
}

// Registry is an ordered step vocabulary.
type Registry struct {
	defs []StepDef
}

// NewRegistry creates an empty vocabulary.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers fn for step texts matching pattern. The pattern is anchored
// at both ends. Add panics on an invalid pattern: vocabularies are static.
func (r *Registry) Add(pattern string, fn StepFunc) {
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^" + pattern
	}
	if !strings.HasSuffix(pattern, "$") {
		pattern += "$"
	}
	r.defs = append(r.defs, StepDef{Pattern: regexp.MustCompile(pattern), Fn: fn})
}

// Match finds the single definition matching text. No match and more than
// one match are both errors.
func (r *Registry) Match(text string) (StepFunc, []string, error) {
	var (
		found StepFunc
		args  []string
		hits  []string
	)
	for _, d := range r.defs {
		m := d.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		hits = append(hits, d.Pattern.String())
		found, args = d.Fn, m[1:]
	}
	switch len(hits) {
	case 0:
		return nil, nil, &errors.HarnessError{
			Kind:    errors.KindPrecondition,
			Message: fmt.Sprintf("undefined step: %q", text),
		}
	case 1:
		return found, args, nil
	default:
		return nil, nil, &errors.HarnessError{
			Kind:    errors.KindPrecondition,
			Message: fmt.Sprintf("ambiguous step %q matches %s", text, strings.Join(hits, ", ")),
		}
	}
}
