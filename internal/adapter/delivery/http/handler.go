package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type linkUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.Link, bool, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
	GetLinkStats(ctx context.Context, shortCode string) (*entity.Link, error)
	ListLinks(ctx context.Context) ([]*entity.Link, error)
	RemoveLink(ctx context.Context, id string) error
}

type linkHandler struct {
	useCase  linkUseCase
	validate *validator.Validate
	baseURL  string
}

func newLinkHandler(useCase linkUseCase, validate *validator.Validate, baseURL string) *linkHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &linkHandler{
		useCase:  useCase,
		validate: validate,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// shortURL joins the configured base URL, or the origin the request was
// addressed to, with the short code.
func (h *linkHandler) shortURL(r *http.Request, shortCode string) string {
	if h.baseURL != "" {
		return h.baseURL + "/" + shortCode
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	// Other forwarded schemes are ignored.
	switch proto = strings.ToLower(strings.TrimSpace(proto)); proto {
	case "http", "https":
		scheme = proto
	}

	return scheme + "://" + r.Host + "/" + shortCode
}

// redirectTarget returns the Location for a stored URL. URLs stored without
// a scheme are sent to http.
func redirectTarget(originalURL string) string {
	if strings.Contains(originalURL, "://") {
		return originalURL
	}
	return "http://" + strings.TrimPrefix(originalURL, "//")
}

func serverError(w http.ResponseWriter, r *http.Request, err error, resp errorResponse) {
	httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, resp)
}

func (h *linkHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, urlRequiredResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	link, created, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidInput) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, urlRequiredResponse)
			return
		}

		serverError(w, r, err, shortenErrorResponse)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	render.Status(r, status)
	render.JSON(w, r, toLinkResponse(link, h.shortURL(r, link.ShortCode)))
}

func (h *linkHandler) navigate(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, shortLinkNotFoundResponse)
			return
		}

		serverError(w, r, err, redirectErrorResponse)
		return
	}

	http.Redirect(w, r, redirectTarget(link.OriginalURL), http.StatusFound)
}

func (h *linkHandler) getLinkStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.useCase.GetLinkStats(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, statsNotFoundResponse)
			return
		}

		serverError(w, r, err, statsErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(link))
}

func (h *linkHandler) listLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.useCase.ListLinks(r.Context())
	if err != nil {
		serverError(w, r, err, listErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toListResponse(links))
}

func (h *linkHandler) removeLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.useCase.RemoveLink(r.Context(), id); err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, linkNotFoundResponse)
			return
		}

		serverError(w, r, err, deleteErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, linkDeletedResponse)
}
