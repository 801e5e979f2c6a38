package api

import (
	"errors"
	"fmt"
	"log/slog"

	"thermorag/types"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr types.ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		apiErr = NewError(fiberErr.Code, fiberErr.Message)
	} else {
		apiErr = NewError(fiber.StatusInternalServerError, err.Error())
	}
	slog.Error("request failed", "code", apiErr.Code, "error", apiErr.Message)
	return c.Status(apiErr.Code).JSON(apiErr)
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrPayloadTooLarge(maxBytes int) Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: fmt.Sprintf("file size exceeds %dMB limit", maxBytes>>20),
	}
}
