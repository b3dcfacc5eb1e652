package csvbackend

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/epsil/linkgrab/internal/storage"
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
	"url",
	"method",
	"status_code",
	"headers_json",
	"body_base64",
	"duration_ms",
	"blocked",
	"block_src",
	"created_at",
	"error",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	// Write the header row only for a fresh file
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *storage.FetchRecord) error {
	headersJSON, err := json.Marshal(rec.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	bodyBase64 := base64.StdEncoding.EncodeToString(rec.Body)

	record := []string{
		rec.ID,
		rec.URL,
		rec.Method,
		strconv.Itoa(rec.StatusCode),
		string(headersJSON),
		bodyBase64,
		strconv.FormatInt(rec.Duration.Milliseconds(), 10),
		strconv.FormatBool(rec.Blocked),
		rec.BlockSrc,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Ensure we're at the end of the file for appending (just in case)
	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek csv file: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv record: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Seek to the beginning of the file to read all entries
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek csv file: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	// Read headers
	_, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return []*storage.FetchRecord{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var allFiltered []*storage.FetchRecord

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		statusCode, _ := strconv.Atoi(record[3])
		var reqHeaders map[string][]string
		if err := json.Unmarshal([]byte(record[4]), &reqHeaders); err != nil {
			// fallback to empty if parse fails
			reqHeaders = map[string][]string{}
		}
		body, _ := base64.StdEncoding.DecodeString(record[5])
		durationMs, _ := strconv.ParseInt(record[6], 10, 64)
		blocked, _ := strconv.ParseBool(record[7])
		createdAt, _ := time.Parse(time.RFC3339Nano, record[9])

		rec := &storage.FetchRecord{
			ID:         record[0],
			URL:        record[1],
			Method:     record[2],
			StatusCode: statusCode,
			Headers:    reqHeaders,
			Body:       body,
			Duration:   time.Duration(durationMs) * time.Millisecond,
			Blocked:    blocked,
			BlockSrc:   record[8],
			CreatedAt:  createdAt,
			Error:      record[10],
		}

		// Apply filters
		if filter.URL != "" && rec.URL != filter.URL {
			continue
		}
		if filter.Blocked != nil && rec.Blocked != *filter.Blocked {
			continue
		}
		if filter.Since != nil && rec.CreatedAt.Before(*filter.Since) {
			continue
		}

		allFiltered = append(allFiltered, rec)
	}

	// Order by created_at DESC (reverse the slice)
	for i, j := 0, len(allFiltered)-1; i < j; i, j = i+1, j-1 {
		allFiltered[i], allFiltered[j] = allFiltered[j], allFiltered[i]
	}

	// Apply Offset
	if filter.Offset > 0 {
		if filter.Offset >= len(allFiltered) {
			return []*storage.FetchRecord{}, nil
		}
		allFiltered = allFiltered[filter.Offset:]
	}

	// Apply Limit
	if filter.Limit > 0 && filter.Limit < len(allFiltered) {
		allFiltered = allFiltered[:filter.Limit]
	}

	return allFiltered, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
