package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"lockScope/internal/dashboard"
	"lockScope/internal/model"
	"lockScope/internal/storage"
)

// persister turns store updates into storage writes. Listeners run in
// reduction order on a dispatching goroutine, so writes are queued and
// drained by run.
type persister struct {
	sink   storage.Storage
	logger *zap.Logger
	queue  chan func(context.Context) error

	mu          sync.Mutex
	lastAccount *dashboard.AccountState
	lastTx      *dashboard.TxResult
}

func newPersister(sink storage.Storage, logger *zap.Logger) *persister {
	return &persister{
		sink:   sink,
		logger: logger,
		queue:  make(chan func(context.Context) error, 64),
	}
}

// observe is registered with Store.Subscribe.
func (p *persister) observe(s dashboard.State) {
	p.mu.Lock()
	var snapshots []model.AccountSnapshot
	var records []model.TxRecord
	if s.AccountState != nil && s.AccountState != p.lastAccount {
		p.lastAccount = s.AccountState
		snapshots = append(snapshots, s.AccountState.Snapshot(s.Network.Name))
	}
	if s.LastTx != nil && s.LastTx != p.lastTx {
		p.lastTx = s.LastTx
		records = append(records, s.LastTx.Record(s.Network.ChainID, s.Account))
	}
	p.mu.Unlock()

	if len(snapshots) > 0 {
		p.enqueue(func(ctx context.Context) error { return p.sink.PutSnapshots(ctx, snapshots) })
	}
	if len(records) > 0 {
		p.enqueue(func(ctx context.Context) error { return p.sink.PutTxRecords(ctx, records) })
	}
}

func (p *persister) enqueue(write func(context.Context) error) {
	select {
	case p.queue <- write:
	default:
		p.logger.Warn("storage queue full, dropping write")
	}
}

// run drains queued writes until ctx is done, then flushes what is left.
func (p *persister) run(ctx context.Context) {
	for {
		select {
		case write := <-p.queue:
			p.write(ctx, write)
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

// flush writes everything still queued.
func (p *persister) flush() {
	for {
		select {
		case write := <-p.queue:
			p.write(context.Background(), write)
		default:
			return
		}
	}
}

func (p *persister) write(ctx context.Context, write func(context.Context) error) {
	if err := write(ctx); err != nil {
		p.logger.Warn("storage write failed", zap.Error(err))
	}
}
