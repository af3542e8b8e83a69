package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_RecordAndCount(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	calls := []ProxyCall{
		{RequestID: "r1", Route: "ask", SessionID: "s1", DocIDs: []string{"d1", "d2"}, Status: 200, Duration: 120 * time.Millisecond},
		{RequestID: "r2", Route: "ask", SessionID: "s1", Status: 500, ErrorClass: "downstream", Duration: time.Second},
		{RequestID: "r3", Route: "upload", SessionID: "s2", DocIDs: []string{"d3"}, Status: 200, Duration: 2 * time.Second},
	}
	for _, call := range calls {
		if err := store.Record(context.Background(), call); err != nil {
			t.Fatalf("Record(%q) error = %v", call.RequestID, err)
		}
	}

	askCount, err := store.CountByRoute(context.Background(), "ask")
	if err != nil {
		t.Fatalf("CountByRoute() error = %v", err)
	}
	if askCount != 2 {
		t.Errorf("ask count = %d, want 2", askCount)
	}

	uploadCount, err := store.CountByRoute(context.Background(), "upload")
	if err != nil {
		t.Fatalf("CountByRoute() error = %v", err)
	}
	if uploadCount != 1 {
		t.Errorf("upload count = %d, want 1", uploadCount)
	}
}
