package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps blobs in a Supabase Storage bucket.
type SupabaseStore struct {
	// the client keeps upload options in shared headers, so uploads are serialized
	mu     sync.Mutex
	client *storage_go.Client
	bucket string
	// SignedURLTTL is the lifetime in seconds of links returned by SignedURL.
	SignedURLTTL int
}

func NewSupabaseStore(projectURL, apiKey, bucket string) (*SupabaseStore, error) {
	if projectURL == "" || apiKey == "" || bucket == "" {
		return nil, errors.New("missing SUPABASE_URL, SUPABASE_KEY, or BUCKET_NAME")
	}
	c := storage_go.NewClient(strings.TrimSuffix(projectURL, "/")+"/storage/v1", apiKey, nil)
	return &SupabaseStore{client: c, bucket: bucket, SignedURLTTL: 3600}, nil
}

func (s *SupabaseStore) Put(key string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	contentType := http.DetectContentType(body)
	upsert := true
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.client.UploadFile(s.bucket, k, bytes.NewReader(body), storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert})
	if err != nil {
		return "", err
	}
	return k, nil
}

func (s *SupabaseStore) Get(key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	b, err := s.client.DownloadFile(s.bucket, k)
	if err != nil {
		return nil, notFound(k, err)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *SupabaseStore) SignedURL(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	resp, err := s.client.CreateSignedUrl(s.bucket, k, s.SignedURLTTL)
	if err != nil {
		return "", notFound(k, err)
	}
	return resp.SignedURL, nil
}

// notFound turns a missing-object response into os.ErrNotExist. Supabase reports it
// as {"statusCode":"404","error":"not_found","message":"Object not found"}, sometimes
// with an HTTP 400, so the message is checked as well as the status.
func notFound(key string, err error) error {
	var se *storage_go.StorageError
	if !errors.As(err, &se) {
		return err
	}
	if se.Status == http.StatusNotFound || strings.Contains(strings.ToLower(se.Message), "not found") {
		return fmt.Errorf("%s: %w", key, os.ErrNotExist)
	}
	return err
}
