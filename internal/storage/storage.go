package storage

import (
	"context"
	"errors"

	"lockScope/internal/model"
)

// Storage defines a sink for account snapshots and transaction records.
type Storage interface {
	PutSnapshots(ctx context.Context, snapshots []model.AccountSnapshot) error
	PutTxRecords(ctx context.Context, records []model.TxRecord) error
}

// Multi fans every write out to all sinks and joins their errors.
type Multi []Storage

func (m Multi) PutSnapshots(ctx context.Context, snapshots []model.AccountSnapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.PutSnapshots(ctx, snapshots); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PutTxRecords(ctx context.Context, records []model.TxRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.PutTxRecords(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
