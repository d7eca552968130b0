package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps audio objects in one Supabase Storage bucket.
type SupabaseStore struct {
	client  *storage.Client
	baseURL string
	bucket  string
}

// NewSupabaseStore builds a store for bucket on the project at supabaseURL.
func NewSupabaseStore(supabaseURL, supabaseKey, bucket string) *SupabaseStore {
	supabaseURL = strings.TrimRight(supabaseURL, "/")
	return &SupabaseStore{
		client:  storage.NewClient(supabaseURL+"/storage/v1", supabaseKey, nil),
		baseURL: supabaseURL,
		bucket:  bucket,
	}
}

// Upload writes data at path. Existing objects are overwritten so a second
// writer racing on the same fingerprint does not fail.
func (s *SupabaseStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	upsert := true
	options := storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}
	return runWithContext(ctx, func() error {
		_, err := s.client.UploadFile(s.bucket, path, bytes.NewReader(data), options)
		return err
	})
}

// Download reads the object at path.
func (s *SupabaseStore) Download(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := runWithContext(ctx, func() error {
		var err error
		data, err = s.client.DownloadFile(s.bucket, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PublicURL is the public link of an object, valid when the bucket is public.
func (s *SupabaseStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}

// runWithContext bounds a call the storage client cannot cancel itself. The
// call keeps running in the background after ctx ends; its result is dropped.
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
