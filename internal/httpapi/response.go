// Package httpapi mounts the authorization-gateway endpoints of
// spec.md §6 on top of Fiber (no console route groups), and
// translates bioserr error families into HTTP responses the way
// common/net/http does for the teacher platform.
package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ideal-world/bios/internal/core/bioserr"
)

// ResponseError is the wire shape of every error body this API emits.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

func jsonErr(c *fiber.Ctx, status int, code, title, message string) error {
	return c.Status(status).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// NotFound writes a 404 response.
func NotFound(c *fiber.Ctx, code, message string) error {
	return jsonErr(c, fiber.StatusNotFound, code, "Entity Not Found", message)
}

// BadRequest writes a 400 response.
func BadRequest(c *fiber.Ctx, code, message string) error {
	return jsonErr(c, fiber.StatusBadRequest, code, "Validation Error", message)
}

// Unauthorized writes a 401 response with an intentionally generic message.
func Unauthorized(c *fiber.Ctx, code string) error {
	return jsonErr(c, fiber.StatusUnauthorized, code, "Unauthorized", "invalid credentials")
}

// Locked writes a 423 response for a locked credential.
func Locked(c *fiber.Ctx, code, message string) error {
	return jsonErr(c, fiber.StatusLocked, code, "Locked", message)
}

// Forbidden writes a 403 response naming which predicate failed, but
// never the allowed set itself.
func Forbidden(c *fiber.Ctx, code, message string) error {
	return jsonErr(c, fiber.StatusForbidden, code, "Forbidden", message)
}

// Conflict writes a 409 response.
func Conflict(c *fiber.Ctx, code, message string) error {
	return jsonErr(c, fiber.StatusConflict, code, "Conflict", message)
}

// UpstreamUnavailable writes a 502 response naming the failing adapter.
func UpstreamUnavailable(c *fiber.Ctx, adapter, code, message string) error {
	return jsonErr(c, fiber.StatusBadGateway, code, adapter, message)
}

// InternalServerError writes a 500 with an opaque code only.
func InternalServerError(c *fiber.Ctx, code string) error {
	return jsonErr(c, fiber.StatusInternalServerError, code, "Internal Error", "an internal error occurred")
}

// Created writes a 201 with body.
func Created(c *fiber.Ctx, body any) error {
	return c.Status(fiber.StatusCreated).JSON(body)
}

// OK writes a 200 with body.
func OK(c *fiber.Ctx, body any) error {
	return c.Status(fiber.StatusOK).JSON(body)
}

// NoContent writes a 204.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// WithError dispatches a bioserr error to the matching HTTP response.
func WithError(c *fiber.Ctx, err error) error {
	var notFound bioserr.NotFoundError
	if errors.As(err, &notFound) {
		return NotFound(c, notFound.Code, notFound.Error())
	}

	var validation bioserr.ValidationError
	if errors.As(err, &validation) {
		return BadRequest(c, validation.Code, validation.Error())
	}

	var unauthorized bioserr.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return Unauthorized(c, unauthorized.Code)
	}

	var locked bioserr.LockedError
	if errors.As(err, &locked) {
		return Locked(c, locked.Code, locked.Error())
	}

	var forbidden bioserr.ForbiddenError
	if errors.As(err, &forbidden) {
		return Forbidden(c, forbidden.Code, forbidden.Error())
	}

	var conflict bioserr.ConflictError
	if errors.As(err, &conflict) {
		return Conflict(c, conflict.Code, conflict.Error())
	}

	var upstream bioserr.UpstreamError
	if errors.As(err, &upstream) {
		return UpstreamUnavailable(c, upstream.Adapter, upstream.Code, upstream.Error())
	}

	var internal bioserr.InternalError
	if errors.As(err, &internal) {
		return InternalServerError(c, internal.Code)
	}

	return InternalServerError(c, "500-bios-internal")
}
