package scenario

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"dev/bravebird/ui-harness/pkg/models"
)

// ErrUndefinedStep is returned for a step no definition matches
var ErrUndefinedStep = errors.New("undefined step")

// StepFunc implements a step. args holds the placeholder values in order.
type StepFunc func(ctx context.Context, w *World, args ...string) error

type definition struct {
	pattern string
	re      *regexp.Regexp
	fn      StepFunc
}

// Registry maps step text to implementations
type Registry struct {
	mu   sync.RWMutex
	defs []definition
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

var placeholder = regexp.MustCompile(`\\\{(\w+)\\\}`)

// Register binds pattern to fn. A pattern is literal step text in which
// {name} matches any non-empty text, e.g. `User search for "{search_text}"`.
func (r *Registry) Register(pattern string, fn StepFunc) error {
	expr := "^" + placeholder.ReplaceAllString(regexp.QuoteMeta(pattern), `(.+?)`) + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("invalid step pattern %q: %w", pattern, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.defs {
		if d.pattern == pattern {
			return fmt.Errorf("step %q already registered", pattern)
		}
	}
	r.defs = append(r.defs, definition{pattern: pattern, re: re, fn: fn})
	return nil
}

// MustRegister is Register for package-level wiring
func (r *Registry) MustRegister(pattern string, fn StepFunc) {
	if err := r.Register(pattern, fn); err != nil {
		panic(err)
	}
}

// Match finds the definition for step text and extracts its arguments
func (r *Registry) Match(text string) (StepFunc, []string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.defs {
		if m := d.re.FindStringSubmatch(text); m != nil {
			return d.fn, m[1:], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUndefinedStep, text)
}

// Run executes one step against w
func (r *Registry) Run(ctx context.Context, w *World, step models.Step) error {
	fn, args, err := r.Match(step.Text)
	if err != nil {
		return err
	}
	return fn(ctx, w, args...)
}

// Patterns lists registered patterns in registration order
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.pattern
	}
	return out
}
