package handler

import (
	"errors"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/middleware"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// statusOf maps the rejection taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrPastSession),
		errors.Is(err, apperr.ErrDuplicateBooking),
		errors.Is(err, apperr.ErrSlotFull),
		errors.Is(err, apperr.ErrCancellationWindowExpired),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrSlotHasBookings):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error", "code"} plus "field" for input errors.
func respondError(c echo.Context, err error) error {
	status := statusOf(err)
	body := echo.Map{"error": err.Error(), "code": apperr.Code(err)}
	var fe *apperr.FieldError
	if errors.As(err, &fe) {
		body["field"] = fe.Field
	}
	switch status {
	case http.StatusInternalServerError:
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		body["error"] = "internal error"
	case http.StatusServiceUnavailable:
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		body["error"] = "storage unavailable, try again"
	}
	return c.JSON(status, body)
}

// bind decodes the body into req and validates it. The returned error is
// already an apperr input error.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Invalid("body", "malformed JSON")
	}
	if err := validate.Struct(req); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return apperr.Invalid(ves[0].Field(), "failed "+ves[0].Tag()+" check")
		}
		return apperr.Invalid("body", err.Error())
	}
	return nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// identity returns the caller set by the JWT middleware. Routes without
// JWTAuth see an empty identity, which the gate refuses.
func identity(c echo.Context) authz.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}
