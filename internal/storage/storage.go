package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound запись не найдена.
var ErrNotFound = errors.New("record not found")

// OperationRecord фиксирует изменяющую операцию над runtime.
type OperationRecord struct {
	Action     string
	Success    bool
	ErrorCode  string
	Message    string
	Source     string
	RequestID  string
	DurationMS int64
	TS         time.Time
}

// OperationQuery задает фильтры выборки истории.
type OperationQuery struct {
	From   time.Time
	To     time.Time
	Action string
	Limit  int
}

// SnapshotRecord сохраняет периодический снимок статуса runtime.
type SnapshotRecord struct {
	Payload []byte
	TS      time.Time
}

// Store описывает операции хранилища.
type Store interface {
	SaveOperation(ctx context.Context, rec OperationRecord) error
	QueryOperations(ctx context.Context, q OperationQuery) ([]OperationRecord, error)
	SaveSnapshot(ctx context.Context, rec SnapshotRecord) error
	LatestSnapshot(ctx context.Context) (SnapshotRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Nop хранилище-заглушка, когда sqlite отключен.
type Nop struct{}

func (Nop) SaveOperation(ctx context.Context, rec OperationRecord) error { return nil }

func (Nop) QueryOperations(ctx context.Context, q OperationQuery) ([]OperationRecord, error) {
	return nil, nil
}

func (Nop) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error { return nil }

func (Nop) LatestSnapshot(ctx context.Context) (SnapshotRecord, error) {
	return SnapshotRecord{}, ErrNotFound
}

func (Nop) Prune(ctx context.Context, before time.Time) (int64, error) { return 0, nil }

func (Nop) Close() error { return nil }
