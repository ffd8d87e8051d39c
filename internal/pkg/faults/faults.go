package faults

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Sentinel error kinds used across the recovery and retention engine.
// Callers classify with errors.Is; wrapping with fmt.Errorf("...: %w", ...)
// is expected so the original cause stays attached.
var (
	// ErrValidation marks malformed or missing input. No state change happened.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown case, account or session token.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition marks a state machine precondition violation,
	// e.g. resolving an already-resolved case. Callers must treat it as a
	// benign idempotent no-op, not a hard failure.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConflictRace marks a guarded update lost to a concurrent writer.
	// Services retry once internally before surfacing ErrInvalidTransition.
	ErrConflictRace = errors.New("concurrent update conflict")

	// ErrUpstreamUnavailable marks a failed storage or provider call.
	// Recovery happens through webhook redelivery, not internal retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRateLimited marks a request rejected by a rate limiter.
	ErrRateLimited = errors.New("rate limited")
)

// Storage wraps a storage-layer error as ErrUpstreamUnavailable while keeping
// record-not-found lookups classified as ErrNotFound.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	return errors.Join(ErrUpstreamUnavailable, err)
}

// HTTPStatus maps an error kind to the HTTP status controllers respond with.
// ErrInvalidTransition maps to 200 because it is a benign idempotent outcome.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return fiber.StatusOK
	case errors.Is(err, ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrConflictRace):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Code returns the stable machine-readable error code exposed to operators.
// End customers never see these; the widget maps everything to generic
// screens.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "already_resolved"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrConflictRace):
		return "conflict"
	default:
		return "internal_error"
	}
}
