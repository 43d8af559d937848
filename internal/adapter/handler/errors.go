package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// statusFor maps a service error to its HTTP status and the message shown
// to the client. Unknown errors are reported as internal without detail.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, strings.TrimPrefix(err.Error(), domain.ErrNotFound.Error()+": ") + " not found"
	case errors.Is(err, domain.ErrInsufficientStock):
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			return http.StatusConflict, stockErr.Error()
		}
		return http.StatusConflict, domain.ErrInsufficientStock.Error()
	case errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict, strings.TrimPrefix(err.Error(), domain.ErrDuplicateKey.Error()+": ")
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// checkoutOutcome labels a checkout result for the outcome counter.
func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return "duplicate"
	default:
		return "error"
	}
}
