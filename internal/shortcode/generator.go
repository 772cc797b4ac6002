// Package shortcode draws unique short codes for new links.
package shortcode

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/penshort/shortkv/internal/metrics"
)

// Alphabet is the base62 character set codes are drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	DefaultLength      = 8
	DefaultMaxAttempts = 5

	minLength = 4
	maxLength = 32
)

// ErrGenerationExhausted is returned when every attempt collided.
var ErrGenerationExhausted = errors.New("could not generate a unique short code")

// codePattern matches any code this package can produce at any length.
var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,32}$`)

// reserved holds path segments served by fixed routes. A code equal to one of
// them could never be redirected.
var reserved = map[string]struct{}{
	"api":     {},
	"healthz": {},
	"metrics": {},
	"readyz":  {},
	"stats":   {},
}

// Reserved reports whether s is a route name that must never be issued.
func Reserved(s string) bool {
	_, ok := reserved[s]
	return ok
}

// Valid reports whether s has the shape of a short code.
func Valid(s string) bool {
	return codePattern.MatchString(s)
}

// ExistenceChecker reports whether a code is already taken.
type ExistenceChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// ExistenceFunc adapts a function to ExistenceChecker.
type ExistenceFunc func(ctx context.Context, code string) (bool, error)

// Exists calls f.
func (f ExistenceFunc) Exists(ctx context.Context, code string) (bool, error) {
	return f(ctx, code)
}

// Generator produces codes that do not exist in the backing store.
type Generator struct {
	checker     ExistenceChecker
	draw        func() string
	maxAttempts int
	metrics     metrics.Recorder
}

// Option customizes a Generator.
type Option func(*Generator)

// WithMaxAttempts bounds how many codes are drawn before giving up.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithMetrics sets the recorder used for collision counters.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(g *Generator) {
		if recorder != nil {
			g.metrics = recorder
		}
	}
}

// WithDrawFunc replaces the random source. Intended for tests.
func WithDrawFunc(draw func() string) Option {
	return func(g *Generator) {
		if draw != nil {
			g.draw = draw
		}
	}
}

// New creates a Generator producing codes of the given length.
func New(checker ExistenceChecker, length int, opts ...Option) (*Generator, error) {
	if checker == nil {
		return nil, errors.New("shortcode: existence checker is required")
	}
	if length == 0 {
		length = DefaultLength
	}
	if length < minLength || length > maxLength {
		return nil, fmt.Errorf("shortcode: length %d out of range [%d,%d]", length, minLength, maxLength)
	}

	draw, err := nanoid.CustomASCII(Alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("shortcode: init generator: %w", err)
	}

	g := &Generator{
		checker:     checker,
		draw:        draw,
		maxAttempts: DefaultMaxAttempts,
		metrics:     metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate returns a code that did not exist when checked. Two concurrent
// callers may still receive the same code; the window is accepted.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := g.draw()
		if Reserved(code) {
			g.metrics.IncCodeCollision()
			continue
		}
		exists, err := g.checker.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
		g.metrics.IncCodeCollision()
	}

	g.metrics.IncCodeExhausted()
	return "", ErrGenerationExhausted
}
