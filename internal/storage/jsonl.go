package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lockScope/internal/model"
)

// Line kinds written by JsonlStorage.
const (
	KindSnapshot = "account_snapshot"
	KindTx       = "tx"
)

// Line is one JSONL entry.
type Line struct {
	Kind   string          `json:"kind"`
	Record json.RawMessage `json:"record"`
}

// JsonlStorage appends snapshots and transaction records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) PutSnapshots(_ context.Context, snapshots []model.AccountSnapshot) error {
	return appendLines(s, KindSnapshot, snapshots)
}

func (s *JsonlStorage) PutTxRecords(_ context.Context, records []model.TxRecord) error {
	return appendLines(s, KindTx, records)
}

func appendLines[T any](s *JsonlStorage, kind string, records []T) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", kind, err)
		}
		line, err := json.Marshal(Line{Kind: kind, Record: raw})
		if err != nil {
			return fmt.Errorf("marshal line: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write %s: %w", kind, err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
