package models

import "github.com/pkg/errors"

var (
	// ErrMalformedPayload: the carrier response lacks the required nested structure.
	ErrMalformedPayload = errors.New("malformed carrier payload")
	// ErrDuplicateTrackingNumber: the tracking number is already stored.
	ErrDuplicateTrackingNumber = errors.New("tracking number already exists")
	// ErrCarrierFetchFailed: network, auth or non-2xx from the carrier lookup.
	ErrCarrierFetchFailed = errors.New("carrier fetch failed")
	// ErrPersistenceFailure: any other storage error.
	ErrPersistenceFailure = errors.New("persistence failure")

	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStatusExists    = errors.New("status already exists")
	// ErrStatusInUse: trackings still reference the status.
	ErrStatusInUse = errors.New("status in use")
)
