package core

import "errors"

var (
	ErrInvalidAddress        = errors.New("invalid address")
	ErrNonceMissing          = errors.New("nonce missing")
	ErrNonceInvalidOrExpired = errors.New("nonce invalid or expired")
	ErrSignatureInvalid      = errors.New("invalid signature")
	ErrUnauthorized          = errors.New("session token invalid or expired")
	ErrForbidden             = errors.New("address does not hold the asset")
	ErrInvalidAssetID        = errors.New("invalid asset id")
	ErrLedgerUnavailable     = errors.New("ledger unavailable")
	ErrMetadataFetchFailed   = errors.New("metadata fetch failed")
	ErrNoMediaInMetadata     = errors.New("no media in metadata")
	ErrServiceError          = errors.New("service error")

	// ErrSessionNotFound is returned by credential stores when a token is unknown.
	ErrSessionNotFound = errors.New("session not found")
)
