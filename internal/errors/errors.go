// Package errors provides the categorized error type shared by the service
// layers. Every error that reaches a caller carries a Category so transports
// can map it without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"strings"
)

// Category classifies an error for the presentation layer.
type Category string

const (
	CategoryAuthorization Category = "authorization"
	CategoryValidation    Category = "validation"
	CategoryPersistence   Category = "persistence"
	CategoryPrecondition  Category = "precondition"
	CategoryNotFound      Category = "not-found"
	CategoryUnavailable   Category = "unavailable"
)

// Sentinels for errors.Is matching by category.
var (
	ErrAuthorization = &Error{Category: CategoryAuthorization}
	ErrValidation    = &Error{Category: CategoryValidation}
	ErrPersistence   = &Error{Category: CategoryPersistence}
	ErrPrecondition  = &Error{Category: CategoryPrecondition}
	ErrNotFound      = &Error{Category: CategoryNotFound}
	ErrUnavailable   = &Error{Category: CategoryUnavailable}
)

// Error wraps a cause with a category, the failing operation and optional
// context fields.
type Error struct {
	Category Category
	Op       string
	Msg      string
	Err      error
	Context  map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Category))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by category, so the package sentinels work with
// the standard errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

// Builder assembles an *Error fluently:
//
//	errors.New(err).Category(errors.CategoryPersistence).Op("scans.create").Build()
type Builder struct {
	e *Error
}

// New starts a builder around cause. cause may be nil when only a message is set.
func New(cause error) *Builder {
	return &Builder{e: &Error{Err: cause, Category: CategoryPersistence}}
}

// Newf starts a builder with a formatted message and no cause.
func Newf(format string, args ...any) *Builder {
	return &Builder{e: &Error{Msg: fmt.Sprintf(format, args...), Category: CategoryValidation}}
}

func (b *Builder) Category(c Category) *Builder { b.e.Category = c; return b }
func (b *Builder) Op(op string) *Builder        { b.e.Op = op; return b }
func (b *Builder) Msg(msg string) *Builder      { b.e.Msg = msg; return b }

func (b *Builder) Context(key string, value any) *Builder {
	if b.e.Context == nil {
		b.e.Context = make(map[string]any)
	}
	b.e.Context[key] = value
	return b
}

func (b *Builder) Build() *Error { return b.e }

// Shorthands used across the services.

func Authorization(op, msg string) error {
	return &Error{Category: CategoryAuthorization, Op: op, Msg: msg}
}

func Validation(op, msg string) error {
	return &Error{Category: CategoryValidation, Op: op, Msg: msg}
}

func Precondition(op, msg string) error {
	return &Error{Category: CategoryPrecondition, Op: op, Msg: msg}
}

func NotFound(op, msg string) error {
	return &Error{Category: CategoryNotFound, Op: op, Msg: msg}
}

func Unavailable(op, msg string) error {
	return &Error{Category: CategoryUnavailable, Op: op, Msg: msg}
}

// Persistence wraps a store failure. A cause that already carries a category
// (for example a not-found from the repository) is returned unchanged.
func Persistence(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if stderrors.As(cause, &e) {
		return cause
	}
	return &Error{Category: CategoryPersistence, Op: op, Err: cause}
}

// CategoryOf returns the category of the first *Error in err's chain, or ""
// for uncategorized errors.
func CategoryOf(err error) Category {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category
	}
	return ""
}

// ContextOf returns a copy of the context fields of the first *Error in err's chain.
func ContextOf(err error) map[string]any {
	var e *Error
	if !stderrors.As(err, &e) || e.Context == nil {
		return nil
	}
	return maps.Clone(e.Context)
}

// Re-exports so callers need a single errors import.

func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }
