package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
)

// shortenRequest represents the body of a request to shorten a URL.
type shortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,max=8192"`
}

// linkResponse is returned by the shorten endpoint.
type linkResponse struct {
	Status      bool      `json:"status"`
	ShortURL    string    `json:"shortUrl"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toLinkResponse(link *entity.Link, shortURL string) linkResponse {
	return linkResponse{
		Status:      true,
		ShortURL:    shortURL,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt,
	}
}

type statsResponse struct {
	Status      bool      `json:"status"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toStatsResponse(link *entity.Link) statsResponse {
	return statsResponse{
		Status:      true,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt,
	}
}

// listItem is one element of the list endpoint's bare JSON array.
type listItem struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toListResponse(links []*entity.Link) []listItem {
	items := make([]listItem, 0, len(links))
	for _, link := range links {
		items = append(items, listItem{
			ID:          link.ID,
			ShortCode:   link.ShortCode,
			OriginalURL: link.OriginalURL,
			Clicks:      link.Clicks,
			CreatedAt:   link.CreatedAt,
		})
	}
	return items
}

type messageResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

var linkDeletedResponse = messageResponse{
	Status:  true,
	Message: "Link deleted successfully",
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status bool              `json:"status"`
	Error  string            `json:"error"`
	Errors []validationError `json:"errors,omitempty"`
}

func newErrorResponse(msg string) errorResponse {
	return errorResponse{Error: msg}
}

var (
	urlRequiredResponse        = newErrorResponse("URL is required")
	invalidRequestBodyResponse = newErrorResponse("Invalid request body")
	shortLinkNotFoundResponse  = newErrorResponse("Short link not found")
	statsNotFoundResponse      = newErrorResponse("Not found")
	linkNotFoundResponse       = newErrorResponse("Link not found")

	shortenErrorResponse  = newErrorResponse("Unable to shorten URL")
	redirectErrorResponse = newErrorResponse("Unable to redirect to the original URL")
	statsErrorResponse    = newErrorResponse("Unable to get stats for short code")
	listErrorResponse     = newErrorResponse("Unable to list links")
	deleteErrorResponse   = newErrorResponse("Unable to delete the link")
	internalErrorResponse = newErrorResponse("Internal server error")
)

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "max":
		return "url is too long"
	default:
		return "invalid value"
	}
}

// validationErrorResponse lists the failed fields. A missing URL keeps the
// "URL is required" message.
func validationErrorResponse(err error) errorResponse {
	resp := newErrorResponse("Invalid URL")

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return resp
	}

	for _, e := range errs {
		if e.Tag() == "required" {
			resp.Error = urlRequiredResponse.Error
		}
		resp.Errors = append(resp.Errors, validationError{
			Field:   e.Field(),
			Message: messageForTag(e.Tag()),
		})
	}

	return resp
}
