package jsonapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// Error is a single JSON:API error object.
type Error struct {
	Status int               `json:"-"`
	Code   string            `json:"code"`
	Title  string            `json:"title,omitempty"`
	Detail string            `json:"detail,omitempty"`
	Source *ErrorSource      `json:"source,omitempty"`
	Links  map[string]string `json:"links,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Code + ": " + e.Detail
	}
	return e.Code
}

func (e *Error) WithPointer(pointer string) *Error {
	clone := *e
	clone.Source = &ErrorSource{Pointer: pointer}
	return &clone
}

func (e *Error) WithLink(name, href string) *Error {
	clone := *e
	clone.Links = map[string]string{name: href}
	for k, v := range e.Links {
		if k != name {
			clone.Links[k] = v
		}
	}
	return &clone
}

func (e *Error) WithDetail(detail string) *Error {
	clone := *e
	clone.Detail = detail
	return &clone
}

type errorObject struct {
	Status string `json:"status"`
	*Error
}

type ErrorDocument struct {
	Errors []errorObject `json:"errors"`
}

func NewError(status int, code, title, detail string) *Error {
	return &Error{
		Status: status,
		Code:   code,
		Title:  title,
		Detail: detail,
	}
}

// Document wraps errs into a JSON:API error document.
func Document(errs ...*Error) ErrorDocument {
	doc := ErrorDocument{Errors: make([]errorObject, 0, len(errs))}
	for _, e := range errs {
		doc.Errors = append(doc.Errors, errorObject{Status: strconv.Itoa(e.Status), Error: e})
	}
	return doc
}

// Send writes e as a JSON:API error document with e.Status as HTTP status.
func Send(ctx *fiber.Ctx, e *Error) error {
	ctx.Set(fiber.HeaderContentType, "application/vnd.api+json")
	body, err := ctx.App().Config().JSONEncoder(Document(e))
	if err != nil {
		return err
	}
	return ctx.Status(e.Status).Send(body)
}

var (
	ErrBadRequest     = NewError(fiber.StatusBadRequest, "invalid_request", "Bad Request", "The request could not be understood.")
	ErrUnauthorized   = NewError(fiber.StatusUnauthorized, "unauthorized", "Unauthorized", "You must be logged in to perform this action.")
	ErrForbidden      = NewError(fiber.StatusForbidden, "permission_denied", "Permission Denied", "You do not have permission to perform this action.")
	ErrNotFound       = NewError(fiber.StatusNotFound, "not_found", "Not Found", "The requested resource was not found.")
	ErrMethodNotAllow = NewError(fiber.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "The request method is not supported for this resource.")
	ErrInternal       = NewError(fiber.StatusInternalServerError, "internal_error", "Internal Server Error", "An unexpected error occurred.")
)
