package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lumina-lms/lumina/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Policy denials carry no
// detail about the reason; quota and state errors surface a human message.
func RespondError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrQuotaExceeded):
		Problem(w, http.StatusBadRequest, "Quota Exceeded", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	case errors.As(err, &verr):
		Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
