package services

import (
	"context"
	"errors"
)

var (
	ErrSynthesisAuth         = errors.New("synthesis: authentication failed")
	ErrSynthesisRateLimited  = errors.New("synthesis: rate limited")
	ErrUnsupportedLanguage   = errors.New("synthesis: unsupported language")
	ErrSynthesisTransient    = errors.New("synthesis: transient failure")
	ErrSynthesisFailed       = errors.New("synthesis: failed")
	ErrStorageUpload         = errors.New("storage: upload failed")
	ErrStorageDownload       = errors.New("storage: download failed")
	ErrCacheLookup           = errors.New("cache: lookup failed")
	ErrCacheWrite            = errors.New("cache: write failed")
	ErrPackaging             = errors.New("deck: packaging failed")
	ErrEmptyCard             = errors.New("card has no text to voice")
	ErrNoCards               = errors.New("no cards supplied")
	ErrTooManyCards          = errors.New("too many cards")
	ErrUnsupportedDeckFormat = errors.New("unsupported deck file format")
	ErrInvalidOptions        = errors.New("invalid deck options")
)

// Error kinds reported per card and in top-level error responses.
const (
	KindSynthesisAuth        = "synthesis_auth"
	KindSynthesisRateLimited = "synthesis_rate_limited"
	KindUnsupportedLanguage  = "unsupported_language"
	KindSynthesisFailed      = "synthesis_failed"
	KindStorageUpload        = "storage_upload"
	KindStorageDownload      = "storage_download"
	KindCacheLookup          = "cache_lookup"
	KindCacheWrite           = "cache_write"
	KindEmptyCard            = "empty_card"
	KindPackaging            = "packaging"
	KindCancelled            = "cancelled"
	KindInvalidInput         = "invalid_input"
	KindInternal             = "internal"
)

// ErrorKind classifies err into one of the Kind* strings.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSynthesisAuth):
		return KindSynthesisAuth
	case errors.Is(err, ErrSynthesisRateLimited):
		return KindSynthesisRateLimited
	case errors.Is(err, ErrUnsupportedLanguage):
		return KindUnsupportedLanguage
	case errors.Is(err, ErrSynthesisTransient), errors.Is(err, ErrSynthesisFailed):
		return KindSynthesisFailed
	case errors.Is(err, ErrStorageUpload):
		return KindStorageUpload
	case errors.Is(err, ErrStorageDownload):
		return KindStorageDownload
	case errors.Is(err, ErrCacheLookup):
		return KindCacheLookup
	case errors.Is(err, ErrCacheWrite):
		return KindCacheWrite
	case errors.Is(err, ErrEmptyCard):
		return KindEmptyCard
	case errors.Is(err, ErrPackaging):
		return KindPackaging
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrNoCards), errors.Is(err, ErrTooManyCards),
		errors.Is(err, ErrInvalidOptions), errors.Is(err, ErrUnsupportedDeckFormat):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// IsFatal reports whether err must abort the whole commit.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSynthesisAuth) || errors.Is(err, ErrPackaging)
}

// IsRetryable reports whether a synthesis call may be attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSynthesisRateLimited) || errors.Is(err, ErrSynthesisTransient)
}
