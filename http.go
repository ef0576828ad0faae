package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const genericServerError = "an unexpected server error occurred"

// Response is the JSON envelope returned by every endpoint
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// TokenResponse is the data payload of signup and login
type TokenResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

// respond writes a success envelope
func respond(ctx router.Context, status int, message string, data any) error {
	return ctx.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// StatusFromError maps an error to its HTTP status code
func StatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryConflict:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryOperation:
		if richErr.Code == http.StatusBadGateway {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler writes err as a failure envelope. Unknown and internal errors
// never leak their message.
func ErrorHandler(ctx router.Context, err error) error {
	return NewErrorHandler(defLogger{}, false)(ctx, err)
}

// NewErrorHandler returns a router.ErrorHandler that logs through logger.
// With debug enabled error metadata is printed as JSON.
func NewErrorHandler(logger Logger, debug bool) router.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(ctx router.Context, err error) error {
		status, res := errorResponse(logger, debug, ctx.Method(), ctx.Path(), err)
		return ctx.JSON(status, res)
	}
}

// NewFiberErrorHandler renders errors that escape the router, such as
// unknown routes or oversized bodies, with the same envelope.
func NewFiberErrorHandler(logger Logger, debug bool) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		status, res := errorResponse(logger, debug, c.Method(), c.Path(), err)
		return c.Status(status).JSON(res)
	}
}

func errorResponse(logger Logger, debug bool, method, path string, err error) (int, Response) {
	status := StatusFromError(err)

	res := Response{
		Success: false,
		Message: genericServerError,
	}

	var fiberErr *fiber.Error
	var richErr *errors.Error
	switch {
	case errors.As(err, &fiberErr):
		res.Message = fiberErr.Message
	case errors.As(err, &richErr):
		if status < http.StatusInternalServerError ||
			status == http.StatusBadGateway ||
			richErr.TextCode == TextCodeAdminNotConfigured {
			res.Message = richErr.Message
		}
		res.Errors = ValidationMessages(err)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request %s %s failed: %v", method, path, err)
	} else {
		logger.Debug("request %s %s rejected: %v", method, path, err)
	}

	if debug && richErr != nil && len(richErr.Metadata) > 0 {
		logger.Debug("error details: %s", print.MaybePrettyJSON(richErr.Metadata))
	}

	return status, res
}
