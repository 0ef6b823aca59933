// Package entity defines the entities and errors shared by every layer of the
// application: the Link record and the error taxonomy used to negotiate
// between the use case and the storage backends.
package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput is returned when the submitted original URL is blank.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLinkNotFound is returned when no link matches the given short code or id.
	ErrLinkNotFound = errors.New("link not found")
	// ErrShortCodeExists is returned by a store when the short code is already taken.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrOriginalURLExists is returned by a store when the original URL is already shortened.
	ErrOriginalURLExists = errors.New("original url exists")
	// ErrGenerationExhausted is returned when no free short code was found within the retry budget.
	ErrGenerationExhausted = errors.New("short code generation exhausted")
	// ErrStoreUnavailable is returned when the store could not be reached or failed to answer.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTimeout is returned when a store call exceeded its deadline.
	ErrTimeout = errors.New("store timeout")
)

// Link represents a shortened URL.
type Link struct {
	ID          uuid.UUID // ID is the opaque identifier assigned at creation.
	ShortCode   string    // ShortCode is the generated code that resolves to OriginalURL.
	OriginalURL string    // OriginalURL is the trimmed URL as submitted.
	Clicks      int64     // Clicks is the number of successful resolutions.
	CreatedAt   time.Time // CreatedAt is the timestamp when the link was created.
}
