// Package usage keeps a ledger of vision model calls and the tokens they
// consumed.
package usage

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"
)

const (
	OpDescribe   = "describe"
	OpChat       = "chat"
	OpChatStream = "chat_stream"
)

// Record is one model call as seen by the caller.
type Record struct {
	CallID    string    `json:"call_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Operation string    `json:"operation"`
	Tokens    int       `json:"tokens"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

type Recorder interface {
	io.Closer
	// Record stores one call outcome.
	Record(ctx context.Context, rec Record) error
	// ListRecords returns recent records ordered by creation time descending.
	ListRecords(ctx context.Context, limit int) ([]Record, error)
}

// MemoryRecorder keeps records in process. The zero value is ready to use.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

var _ Recorder = (*MemoryRecorder)(nil)

func (m *MemoryRecorder) Close() error {
	return nil
}

func (m *MemoryRecorder) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryRecorder) ListRecords(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ret := slices.Clone(m.records)
	slices.Reverse(ret)
	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}
	return ret, nil
}
