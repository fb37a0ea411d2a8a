// Package tasknode derives queryable state from raw ledger transactions:
// materialized memos, per-account PFT balances, response correlation, review
// annotations and the authorized-address registry.
//
// The source system expressed the memo and balance derivations as
// storage-side triggers. Here they run as an explicit pipeline of pure
// build steps plus one atomic store apply per stage, invoked synchronously
// by the ingestion boundary.
package tasknode

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// Processor runs the ingestion pipeline. For every delivered transaction:
//
//	stage 1: upsert the raw transaction (last-write-wins on non-key fields)
//	stage 2: materialize the first memo, upserting by hash
//	stage 3: on first insertion of a memo for a successful transaction,
//	         fold the transfer amount into the balance ledger
//
// Stage 3 deliberately does not re-run when a memo is overwritten by a
// redelivery. A transaction whose result flips to success after its memo was
// first materialized never gets its balance effect applied; the source
// system behaves the same way and downstream accounting depends on deltas
// not being double counted.
type Processor struct {
	store  store.TasknodeStore
	logger *slog.Logger
	now    func() time.Time
	stats  *processorStats
}

func WithNow(nowFunc func() time.Time) func(*Processor) {
	return func(p *Processor) {
		p.now = nowFunc
	}
}

func WithStatsRegisterer(registerer prometheus.Registerer) func(*Processor) {
	return func(p *Processor) {
		_ = p.stats.register(registerer)
	}
}

func NewProcessor(s store.TasknodeStore, logger *slog.Logger, opts ...func(*Processor)) *Processor {
	p := &Processor{
		store:  s,
		logger: logger.With(slog.String("service", "processor")),
		now:    time.Now,
		stats:  newProcessorStats(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessTransaction is the ingestion boundary's put. It is idempotent for
// repeated deliveries of identical content. When memo decoding fails the raw
// upsert stands and the error is returned to the caller; nothing partial is
// written to the memo or balance state.
func (p *Processor) ProcessTransaction(ctx context.Context, tx *store.TransactionData) error {
	if err := p.store.UpsertTransaction(ctx, tx); err != nil {
		return err
	}
	p.stats.transactionsIngested.Inc()

	memoData, err := BuildMemo(tx)
	if err != nil {
		p.stats.materializeFailures.Inc()
		p.logger.Warn("memo materialization failed", slog.String("hash", tx.Hash), slog.String("err", err.Error()))
		return err
	}
	if memoData == nil {
		// No memo entries. An earlier materialized memo from a previous
		// delivery of this hash is not retracted.
		return nil
	}

	inserted, err := p.store.UpsertMemo(ctx, memoData)
	if err != nil {
		return err
	}
	p.stats.memosMaterialized.Inc()

	if !inserted {
		return nil
	}

	return p.applyBalance(ctx, memoData)
}

// applyBalance folds a freshly materialized memo into the balance ledger.
// Runs only on first insertion of the memo row.
func (p *Processor) applyBalance(ctx context.Context, memoData *store.MemoData) error {
	if memoData.TransactionResult != TxResultSuccess {
		return nil
	}
	if memoData.PFTAmount == nil {
		return nil
	}
	if memoData.Account == "" && memoData.Destination == "" {
		return nil
	}

	transfer := &store.TransferDelta{
		Account:     memoData.Account,
		Destination: memoData.Destination,
		Amount:      *memoData.PFTAmount,
		Timestamp:   memoData.Timestamp,
		Hash:        memoData.Hash,
	}

	if err := p.store.ApplyTransfer(ctx, transfer); err != nil {
		return err
	}
	p.stats.transfersApplied.Inc()

	p.logger.Debug("transfer applied",
		slog.String("hash", transfer.Hash),
		slog.String("account", transfer.Account),
		slog.String("destination", transfer.Destination),
		slog.Float64("amount", transfer.Amount),
	)

	return nil
}

// PurgeTransaction removes a raw transaction and, by cascade, its memo row.
// Balance deltas already applied are not reversed; purge is an
// administrative operation and the ledger has no reversal path short of
// reprocessing history.
func (p *Processor) PurgeTransaction(ctx context.Context, hash string) error {
	return p.store.DeleteTransaction(ctx, hash)
}

// RecordReview upserts a manual or automated classification outcome for a
// transaction hash.
func (p *Processor) RecordReview(ctx context.Context, review *store.ReviewData) error {
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = p.now().UTC()
	}
	return p.store.UpsertReview(ctx, review)
}
