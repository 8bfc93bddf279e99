package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrMalformedAdvice is returned when the provider answer does not follow the schema.
var ErrMalformedAdvice = errors.New("ai advice malformed")
