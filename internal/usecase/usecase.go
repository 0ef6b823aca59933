// Package usecase implements the link resolution service: shortening with
// dedup and collision retry, counted resolution, stats, listing and removal.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
	"github.com/vadimbarashkov/shortlinks/pkg/metrics"
)

const (
	defaultMaxRetries   = 5
	defaultStoreTimeout = 3 * time.Second
)

type linkRepository interface {
	FindByOriginalURL(ctx context.Context, originalURL string) (*entity.Link, error)
	Save(ctx context.Context, id uuid.UUID, shortCode, originalURL string) (*entity.Link, error)
	FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
	IncrementClicks(ctx context.Context, shortCode string) (*entity.Link, error)
	List(ctx context.Context) ([]*entity.Link, error)
	Remove(ctx context.Context, id uuid.UUID) (bool, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

type LinkUseCase struct {
	linkRepo     linkRepository
	generator    codeGenerator
	maxRetries   int
	storeTimeout time.Duration
	metrics      *metrics.Metrics
}

type Option func(*LinkUseCase)

// WithMaxRetries sets how many short codes ShortenURL tries before giving up.
func WithMaxRetries(n int) Option {
	return func(uc *LinkUseCase) {
		if n > 0 {
			uc.maxRetries = n
		}
	}
}

// WithStoreTimeout bounds every individual store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(uc *LinkUseCase) {
		if d > 0 {
			uc.storeTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *LinkUseCase) {
		uc.metrics = m
	}
}

func New(linkRepo linkRepository, generator codeGenerator, opts ...Option) *LinkUseCase {
	uc := &LinkUseCase{
		linkRepo:     linkRepo,
		generator:    generator,
		maxRetries:   defaultMaxRetries,
		storeTimeout: defaultStoreTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *LinkUseCase) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, uc.storeTimeout)
}

// ShortenURL returns the link for originalURL, creating it if needed.
// The boolean result reports whether a new link was stored.
func (uc *LinkUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.Link, bool, error) {
	const op = "usecase.LinkUseCase.ShortenURL"

	originalURL = strings.TrimSpace(originalURL)
	if originalURL == "" {
		return nil, false, fmt.Errorf("%s: original url is blank: %w", op, entity.ErrInvalidInput)
	}

	link, err := uc.findByOriginalURL(ctx, originalURL)
	if err == nil {
		uc.observeReused()
		return link, false, nil
	}
	if !errors.Is(err, entity.ErrLinkNotFound) {
		return nil, false, fmt.Errorf("%s: failed to look up original url: %w", op, err)
	}

	for i := 0; i < uc.maxRetries; i++ {
		shortCode, err := uc.generator.Generate()
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		link, err := uc.save(ctx, shortCode, originalURL)
		switch {
		case err == nil:
			if uc.metrics != nil {
				uc.metrics.LinksCreated.Inc()
			}
			return link, true, nil
		case errors.Is(err, entity.ErrShortCodeExists):
			if uc.metrics != nil {
				uc.metrics.CodeCollisions.Inc()
			}
			continue
		case errors.Is(err, entity.ErrOriginalURLExists):
			// A concurrent request stored the same URL first.
			link, err := uc.findByOriginalURL(ctx, originalURL)
			if err == nil {
				uc.observeReused()
				return link, false, nil
			}
			if errors.Is(err, entity.ErrLinkNotFound) {
				continue
			}
			return nil, false, fmt.Errorf("%s: failed to look up original url: %w", op, err)
		default:
			return nil, false, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}
	}

	return nil, false, fmt.Errorf("%s: %d attempts: %w", op, uc.maxRetries, entity.ErrGenerationExhausted)
}

func (uc *LinkUseCase) findByOriginalURL(ctx context.Context, originalURL string) (*entity.Link, error) {
	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	return uc.linkRepo.FindByOriginalURL(ctx, originalURL)
}

func (uc *LinkUseCase) save(ctx context.Context, shortCode, originalURL string) (*entity.Link, error) {
	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	return uc.linkRepo.Save(ctx, uuid.New(), shortCode, originalURL)
}

func (uc *LinkUseCase) observeReused() {
	if uc.metrics != nil {
		uc.metrics.LinksReused.Inc()
	}
}

// ResolveShortCode returns the link for shortCode and counts the visit in the
// same store operation.
func (uc *LinkUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.ResolveShortCode"

	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	link, err := uc.linkRepo.IncrementClicks(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if uc.metrics != nil {
		uc.metrics.Resolutions.Inc()
	}

	return link, nil
}

func (uc *LinkUseCase) GetLinkStats(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.GetLinkStats"

	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	link, err := uc.linkRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link stats: %w", op, err)
	}

	return link, nil
}

// ListLinks returns every link, newest first.
func (uc *LinkUseCase) ListLinks(ctx context.Context) ([]*entity.Link, error) {
	const op = "usecase.LinkUseCase.ListLinks"

	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	links, err := uc.linkRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, nil
}

// RemoveLink deletes the link with the given id. A malformed id never
// matches a stored link and is reported as entity.ErrLinkNotFound.
func (uc *LinkUseCase) RemoveLink(ctx context.Context, id string) error {
	const op = "usecase.LinkUseCase.RemoveLink"

	linkID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%s: malformed id %q: %w", op, id, entity.ErrLinkNotFound)
	}

	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	removed, err := uc.linkRepo.Remove(ctx, linkID)
	if err != nil {
		return fmt.Errorf("%s: failed to remove link: %w", op, err)
	}
	if !removed {
		return fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return nil
}
