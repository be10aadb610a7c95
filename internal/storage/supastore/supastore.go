// Package supastore keeps image objects in a Supabase storage bucket.
package supastore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	storage "github.com/supabase-community/storage-go"
)

type Store struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func New(supabaseURL, serviceRoleKey, bucket string) *Store {
	baseURL := strings.TrimRight(supabaseURL, "/")
	return &Store{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	upsert := false
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return errors.Wrap(err, "upload object")
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return errors.Wrap(err, "remove object")
	}
	return nil
}

func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
