package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/givescan/givescan/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"run_id",
	"place_id",
	"name",
	"address",
	"latitude",
	"longitude",
	"rating",
	"user_rating_count",
	"business_status",
	"distance_meters",
	"phone",
	"website",
	"email",
	"detail_fetched",
	"created_at",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open %s: %w", filePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	// Write the header row once for a fresh file.
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: flush header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (b *csvBackend) Save(ctx context.Context, rec *storage.Record) error {
	p := rec.Place
	record := []string{
		rec.ID,
		rec.RunID,
		p.PlaceID,
		p.Name,
		p.Address,
		formatFloat(p.Latitude),
		formatFloat(p.Longitude),
		formatFloat(p.Rating),
		strconv.Itoa(p.UserRatingCount),
		p.BusinessStatus,
		formatFloat(p.DistanceMeters),
		p.Phone,
		p.Website,
		p.Email,
		strconv.FormatBool(p.DetailFetched),
		rec.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: flush: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvbackend: read: %w", err)
	}

	var all []*storage.Record
	for i, row := range rows {
		if i == 0 || len(row) != len(headers) {
			continue // header or malformed row
		}

		rec := fromRow(row)

		if filter.RunID != "" && rec.RunID != filter.RunID {
			continue
		}
		if filter.HasEmail != nil && (rec.Place.Email != "") != *filter.HasEmail {
			continue
		}
		if filter.Since != nil && rec.CreatedAt.Before(*filter.Since) {
			continue
		}

		all = append(all, rec)
	}

	// Order by created_at DESC (reverse the slice)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return []*storage.Record{}, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}

	return all, nil
}

func fromRow(row []string) *storage.Record {
	rec := &storage.Record{
		ID:    row[0],
		RunID: row[1],
	}
	rec.Place.PlaceID = row[2]
	rec.Place.Name = row[3]
	rec.Place.Address = row[4]
	rec.Place.Latitude = parseFloat(row[5])
	rec.Place.Longitude = parseFloat(row[6])
	rec.Place.Rating = parseFloat(row[7])
	rec.Place.UserRatingCount, _ = strconv.Atoi(row[8])
	rec.Place.BusinessStatus = row[9]
	rec.Place.DistanceMeters = parseFloat(row[10])
	if rec.Place.DistanceMeters != nil {
		km := *rec.Place.DistanceMeters / 1000
		rec.Place.DistanceKm = &km
	}
	rec.Place.Phone = row[11]
	rec.Place.Website = row[12]
	rec.Place.Email = row[13]
	rec.Place.DetailFetched, _ = strconv.ParseBool(row[14])
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, row[15])
	return rec
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
