package storage

import (
	"errors"
	"io"
	"path"
	"strings"
)

// BlobStore archives rendered artifacts such as PDF score reports.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}

var ErrBadKey = errors.New("invalid blob key")

// cleanKey normalizes a slash-separated key and refuses keys that climb out of the root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || strings.Contains(key, "..") {
		return "", ErrBadKey
	}
	return k, nil
}

// ReportKey is where a finalized attempt's PDF is archived.
func ReportKey(attemptID string) string { return "reports/" + attemptID + ".pdf" }
