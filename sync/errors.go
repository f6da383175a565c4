// ABOUTME: Error taxonomy for calendar operations
// ABOUTME: Maps Google API, network, and circuit breaker failures onto sentinel errors
package sync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
)

var (
	ErrNotConnected     = errors.New("calendar not connected")
	ErrRefreshFailed    = errors.New("calendar credential refresh failed")
	ErrRateLimited      = errors.New("calendar rate limited")
	ErrTransient        = errors.New("calendar temporarily unavailable")
	ErrNotFound         = errors.New("calendar event not found")
	ErrPermissionDenied = errors.New("calendar permission denied")
	ErrSlotConflict     = errors.New("time slot conflicts with an existing event")
	ErrInvalidInterval  = errors.New("end must be after start")
)

// taxonomy lists the sentinels classifyError leaves untouched.
var taxonomy = []error{
	ErrNotConnected,
	ErrRefreshFailed,
	ErrRateLimited,
	ErrTransient,
	ErrNotFound,
	ErrPermissionDenied,
	ErrSlotConflict,
	ErrInvalidInterval,
}

// classifyError maps a raw client error onto the taxonomy. Context errors and
// errors already in the taxonomy pass through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", classifyStatus(apiErr), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	return err
}

func classifyStatus(apiErr *googleapi.Error) error {
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case apiErr.Code == http.StatusForbidden && hasRateLimitReason(apiErr):
		return ErrRateLimited
	case apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone:
		return ErrNotFound
	case apiErr.Code >= 500:
		return ErrTransient
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return ErrPermissionDenied
	}
	return fmt.Errorf("calendar request rejected with status %d", apiErr.Code)
}

func hasRateLimitReason(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
