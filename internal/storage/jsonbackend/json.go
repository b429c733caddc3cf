package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/givescan/givescan/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: open %s: %w", filePath, err)
	}

	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, rec *storage.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jsonbackend: marshal: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonbackend: write: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("jsonbackend: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var all []*storage.Record
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r storage.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("jsonbackend: unmarshal: %w", err)
		}

		if !matches(&r, filter) {
			continue
		}

		all = append(all, &r)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonbackend: scan: %w", err)
	}

	return paginate(all, filter), nil
}

func matches(r *storage.Record, filter storage.Filter) bool {
	if filter.RunID != "" && r.RunID != filter.RunID {
		return false
	}
	if filter.HasEmail != nil && (r.Place.Email != "") != *filter.HasEmail {
		return false
	}
	if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
		return false
	}
	return true
}

// paginate orders records newest-first and applies offset/limit, the way a
// database engine would.
func paginate(all []*storage.Record, filter storage.Filter) []*storage.Record {
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return []*storage.Record{}
		}
		all = all[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}

	return all
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
