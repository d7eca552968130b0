package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/vnkhanh/audiodeck-backend/models"
)

// memRepo mimics a table with a unique text_hash.
type memRepo struct {
	mu      sync.Mutex
	rows    map[string]models.AudioCache
	finds   int
	upserts int
	findErr error
	upErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]models.AudioCache{}}
}

func (r *memRepo) Find(_ context.Context, hash string) (*models.AudioCache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	row, ok := r.rows[hash]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *memRepo) Upsert(_ context.Context, entry *models.AudioCache) (UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upErr != nil {
		return "", r.upErr
	}
	if _, ok := r.rows[entry.TextHash]; ok {
		return UpsertAlreadyPresent, nil
	}
	r.rows[entry.TextHash] = *entry
	return UpsertInserted, nil
}

func (r *memRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memRepo) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	uploads     int
	downloads   int
	uploadErr   error
	downloadErr error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Upload(_ context.Context, path string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[path] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Download(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	data, ok := s.objects[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *memStore) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// stubSynth returns "audio:<lang>:<text>" and fails for texts listed in failures.
type stubSynth struct {
	mu       sync.Mutex
	calls    int
	failures map[string]error
}

func (s *stubSynth) Name() string { return "stub" }

func (s *stubSynth) Synthesize(_ context.Context, req SynthesisRequest) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	err := s.failures[req.Text]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []byte("audio:" + req.Language + ":" + req.Text), nil
}

func (s *stubSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// mapDetector answers from a fixed table, keyed by lower-cased text.
type mapDetector struct {
	langs    map[string]string
	fallback string
}

func (d mapDetector) Detect(text string) (string, bool) {
	if lang, ok := d.langs[strings.ToLower(strings.TrimSpace(text))]; ok {
		return lang, false
	}
	return d.fallback, true
}
