// Package storage archives generated reports in object storage.
package storage

import (
	"context"
	"errors"
	"time"
)

// ReportArchive stores rendered reports and hands out download links
type ReportArchive interface {
	// Put stores data under key and returns a URL valid for the archive's
	// presign window
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, expiresAt time.Time, err error)
}

var errEmptyKey = errors.New("storage key is required")
