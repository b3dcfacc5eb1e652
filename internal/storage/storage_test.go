package storage

import (
	"context"
	"testing"
	"time"
)

// ensure FetchRecord compiles and has the fields expected
func TestFetchRecord_Types(t *testing.T) {
	_ = FetchRecord{
		ID:         "test1234",
		URL:        "http://example.com",
		Method:     "GET",
		StatusCode: 200,
		Headers:    map[string][]string{"X-Test": {"true"}},
		Body:       []byte("hello"),
		Duration:   10 * time.Millisecond,
		Blocked:    false,
		BlockSrc:   "",
		CreatedAt:  time.Now(),
		Error:      "",
	}

	boolTrue := true
	now := time.Now()
	_ = Filter{
		URL:     "http://example.com",
		Blocked: &boolTrue,
		Since:   &now,
		Limit:   10,
		Offset:  0,
	}
}

// Ensure Backend interface exists and is implementable
type mockBackend struct{}

func (m *mockBackend) Save(ctx context.Context, rec *FetchRecord) error { return nil }
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*FetchRecord, error) {
	return nil, nil
}
func (m *mockBackend) Close() error { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}
