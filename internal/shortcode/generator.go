// Package shortcode generates random, fixed-length, URL-safe short codes.
//
// Codes never depend on the URL being shortened. Collisions are possible and
// are resolved by the store's uniqueness constraint, not here.
package shortcode

import (
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultLength   = 7
	DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.~"
)

var (
	ErrInvalidLength   = errors.New("short code length must be positive")
	ErrInvalidAlphabet = errors.New("invalid short code alphabet")
)

// Generator produces short codes. It is safe for concurrent use.
type Generator struct {
	alphabet string
	length   int
}

type Option func(*Generator)

func WithLength(n int) Option {
	return func(g *Generator) {
		g.length = n
	}
}

func WithAlphabet(alphabet string) Option {
	return func(g *Generator) {
		g.alphabet = alphabet
	}
}

// New returns a Generator using DefaultLength and DefaultAlphabet unless
// overridden by opts.
func New(opts ...Option) (*Generator, error) {
	const op = "shortcode.New"

	g := &Generator{
		alphabet: DefaultAlphabet,
		length:   DefaultLength,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.length <= 0 {
		return nil, fmt.Errorf("%s: %w: %d", op, ErrInvalidLength, g.length)
	}

	if err := validateAlphabet(g.alphabet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return g, nil
}

func validateAlphabet(alphabet string) error {
	if len(alphabet) < 2 || len(alphabet) > 255 {
		return fmt.Errorf("%w: must contain between 2 and 255 characters", ErrInvalidAlphabet)
	}

	seen := make(map[rune]struct{}, len(alphabet))
	for _, c := range alphabet {
		if !strings.ContainsRune(unreserved, c) {
			return fmt.Errorf("%w: %q is not URL-safe", ErrInvalidAlphabet, c)
		}
		if _, ok := seen[c]; ok {
			return fmt.Errorf("%w: %q is repeated", ErrInvalidAlphabet, c)
		}
		seen[c] = struct{}{}
	}

	return nil
}

// Length returns the number of characters in every generated code.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a new random short code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(g.alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}
