package http

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/examportal/internal/storage"
)

// MountReportArchive serves archived report PDFs.
//
//	GET /{attemptID}      -> the PDF bytes
//	GET /{attemptID}/url  -> {"url": ...} signed link from the blob store
func MountReportArchive(r chi.Router, bs storage.BlobStore) {
	r.Get("/{attemptID}", func(w http.ResponseWriter, r *http.Request) {
		rc, err := bs.Get(storage.ReportKey(chi.URLParam(r, "attemptID")))
		if err != nil {
			archiveError(w, r, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.Copy(w, rc)
	})

	r.Get("/{attemptID}/url", func(w http.ResponseWriter, r *http.Request) {
		u, err := bs.SignedURL(storage.ReportKey(chi.URLParam(r, "attemptID")))
		if err != nil {
			archiveError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": u})
	})
}

func archiveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrBadKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, os.ErrNotExist):
		http.Error(w, "report not archived", http.StatusNotFound)
	default:
		httpError(w, r, err)
	}
}
