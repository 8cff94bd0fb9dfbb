package storage

import (
	"context"
	"net/url"
	"sync"
	"time"
)

var _ ReportArchive = (*MemoryReportArchive)(nil)

// MemoryReportArchive keeps reports in process. Used when object storage is
// disabled; the returned URLs point at BaseURL and are served by the HTTP layer.
type MemoryReportArchive struct {
	BaseURL string
	TTL     time.Duration

	mu      sync.RWMutex
	objects map[string]storedReport
	now     func() time.Time
}

type storedReport struct {
	data        []byte
	contentType string
	expiresAt   time.Time
}

// NewMemoryReportArchive creates an archive whose links live for ttl
func NewMemoryReportArchive(baseURL string, ttl time.Duration) *MemoryReportArchive {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MemoryReportArchive{
		BaseURL: baseURL,
		TTL:     ttl,
		objects: make(map[string]storedReport),
		now:     time.Now,
	}
}

// Put implements ReportArchive
func (m *MemoryReportArchive) Put(_ context.Context, key string, data []byte, contentType string) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errEmptyKey
	}
	expiresAt := m.now().Add(m.TTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	m.objects[key] = storedReport{data: append([]byte(nil), data...), contentType: contentType, expiresAt: expiresAt}
	return m.BaseURL + "/" + url.PathEscape(key), expiresAt, nil
}

// Get returns a stored report until its link expires
func (m *MemoryReportArchive) Get(key string) (data []byte, contentType string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, found := m.objects[key]
	if !found || !m.now().Before(r.expiresAt) {
		return nil, "", false
	}
	return r.data, r.contentType, true
}

func (m *MemoryReportArchive) evictLocked() {
	now := m.now()
	for k, r := range m.objects {
		if !now.Before(r.expiresAt) {
			delete(m.objects, k)
		}
	}
}
