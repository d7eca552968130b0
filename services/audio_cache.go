package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/vnkhanh/audiodeck-backend/models"
)

const audioContentType = "audio/mpeg"

// ObjectStore is the blob half of the audio cache.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
}

// AudioReference points at a cached clip. data is set when the clip was
// produced by this request and is reused instead of a download.
type AudioReference struct {
	Fingerprint string
	Path        string
	Language    string
	CacheHit    bool
	Outcome     UpsertOutcome
	// WriteErr is a metadata upsert failure after a successful upload. The
	// object is orphaned but the clip is still usable for this request.
	WriteErr error
	data     []byte
}

// AudioCache implements lookup, synthesize-on-miss and store.
//
// Lookup and insert are not atomic: two concurrent misses for one fingerprint
// both synthesize and both upload. The object upload overwrites identical
// content and the metadata insert is an upsert on text_hash, so the second
// writer sees UpsertAlreadyPresent instead of corrupting the row.
type AudioCache struct {
	repo           CacheRepository
	store          ObjectStore
	provider       string
	storageTimeout time.Duration
}

func NewAudioCache(repo CacheRepository, store ObjectStore, provider string, storageTimeout time.Duration) *AudioCache {
	return &AudioCache{
		repo:           repo,
		store:          store,
		provider:       provider,
		storageTimeout: storageTimeout,
	}
}

// GetOrCreate returns the cached clip for fingerprint, calling synth on a miss.
func (c *AudioCache) GetOrCreate(ctx context.Context, fingerprint, text, language string, synth SynthesizeFunc) (AudioReference, error) {
	row, err := c.lookup(ctx, fingerprint)
	if err != nil {
		return AudioReference{}, err
	}
	if row != nil {
		cacheLookups.WithLabelValues("hit").Inc()
		return AudioReference{
			Fingerprint: fingerprint,
			Path:        row.FilePath,
			Language:    row.Language,
			CacheHit:    true,
		}, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	audio, err := synth(ctx, text, language)
	if err != nil {
		return AudioReference{}, err
	}

	path := AudioFileName(fingerprint)
	if err := c.upload(ctx, path, audio); err != nil {
		return AudioReference{}, err
	}

	ref := AudioReference{
		Fingerprint: fingerprint,
		Path:        path,
		Language:    language,
		data:        audio,
	}

	entry := &models.AudioCache{
		TextHash:  fingerprint,
		Text:      truncateRunes(text, models.MaxCachedTextLen),
		FilePath:  path,
		Language:  language,
		Provider:  c.provider,
		SizeBytes: len(audio),
	}
	if secs, err := MP3Duration(audio); err == nil {
		entry.DurationMs = int64(secs * 1000)
	}

	outcome, err := c.upsert(ctx, entry)
	if err != nil {
		log.Warn().Err(err).Str("fingerprint", fingerprint).Str("path", path).
			Msg("audio uploaded but cache row was not written")
		ref.WriteErr = fmt.Errorf("%w: %v", ErrCacheWrite, err)
		return ref, nil
	}
	cacheWrites.WithLabelValues(string(outcome)).Inc()
	ref.Outcome = outcome
	return ref, nil
}

// Fetch returns the clip bytes, downloading them on a cache hit.
func (c *AudioCache) Fetch(ctx context.Context, ref AudioReference) ([]byte, error) {
	if ref.data != nil {
		return ref.data, nil
	}
	ctx, cancel := c.withStorageTimeout(ctx)
	defer cancel()

	data, err := c.store.Download(ctx, ref.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStorageDownload, ref.Path, err)
	}
	return data, nil
}

// Repair re-synthesizes a clip whose row exists but whose object could not
// be downloaded, and uploads it back under the same path.
func (c *AudioCache) Repair(ctx context.Context, ref AudioReference, text string, synth SynthesizeFunc) (AudioReference, error) {
	audio, err := synth(ctx, text, ref.Language)
	if err != nil {
		return AudioReference{}, err
	}
	if err := c.upload(ctx, ref.Path, audio); err != nil {
		return AudioReference{}, err
	}
	ref.data = audio
	return ref, nil
}

func (c *AudioCache) lookup(ctx context.Context, fingerprint string) (*models.AudioCache, error) {
	ctx, cancel := c.withStorageTimeout(ctx)
	defer cancel()

	row, err := c.repo.Find(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheLookup, err)
	}
	return row, nil
}

func (c *AudioCache) upsert(ctx context.Context, entry *models.AudioCache) (UpsertOutcome, error) {
	ctx, cancel := c.withStorageTimeout(ctx)
	defer cancel()

	return c.repo.Upsert(ctx, entry)
}

func (c *AudioCache) upload(ctx context.Context, path string, audio []byte) error {
	ctx, cancel := c.withStorageTimeout(ctx)
	defer cancel()

	if err := c.store.Upload(ctx, path, audio, audioContentType); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorageUpload, path, err)
	}
	return nil
}

func (c *AudioCache) withStorageTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.storageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.storageTimeout)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
