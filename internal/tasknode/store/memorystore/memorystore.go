// Package memorystore is a map-backed implementation of the tasknode store.
// It is mainly used in tests and for local development runs; a single mutex
// stands in for the row-level serialization the postgres store provides.
package memorystore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

type MemoryStore struct {
	mu             sync.RWMutex
	transactions   map[string]*store.TransactionData
	memos          map[string]*store.MemoData
	holders        map[string]*store.HolderData
	reviews        map[string]*store.ReviewData
	authorizations map[string]*store.AuthorizedAddress
}

// New returns a new initialized MemoryStore implementing the TasknodeStore
// interface.
func New() *MemoryStore {
	return &MemoryStore{
		transactions:   make(map[string]*store.TransactionData),
		memos:          make(map[string]*store.MemoData),
		holders:        make(map[string]*store.HolderData),
		reviews:        make(map[string]*store.ReviewData),
		authorizations: make(map[string]*store.AuthorizedAddress),
	}
}

func (m *MemoryStore) UpsertTransaction(_ context.Context, tx *store.TransactionData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tx
	m.transactions[tx.Hash] = &cp
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, hash string) (*store.TransactionData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// DeleteTransaction cascades to the memo row only. Review rows and balances
// are left untouched on purpose, matching the durable store.
func (m *MemoryStore) DeleteTransaction(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[hash]; !ok {
		return store.ErrNotFound
	}
	delete(m.transactions, hash)
	delete(m.memos, hash)
	return nil
}

func (m *MemoryStore) UpsertMemo(_ context.Context, memo *store.MemoData) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.memos[memo.Hash]
	cp := cloneMemo(memo)
	m.memos[memo.Hash] = cp
	return !exists, nil
}

func (m *MemoryStore) GetMemo(_ context.Context, hash string) (*store.MemoData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	memo, ok := m.memos[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneMemo(memo), nil
}

func (m *MemoryStore) ListMemos(_ context.Context, filter store.MemoFilter) ([]*store.MemoData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*store.MemoData
	for _, memo := range m.memos {
		if !matchesFilter(memo, filter) {
			continue
		}
		result = append(result, cloneMemo(memo))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return strings.Compare(result[i].Hash, result[j].Hash) < 0
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (m *MemoryStore) GetBalance(_ context.Context, account string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	holder, ok := m.holders[account]
	if !ok {
		return 0, nil
	}
	return holder.Balance, nil
}

func (m *MemoryStore) GetHolder(_ context.Context, account string) (*store.HolderData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	holder, ok := m.holders[account]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *holder
	return &cp, nil
}

// ApplyTransfer folds one transfer into the balance ledger. The sender debit
// and destination credit are applied as two sequential read-modify-writes
// under the same lock, so a self-transfer touches its row twice and nets to
// zero.
func (m *MemoryStore) ApplyTransfer(_ context.Context, transfer *store.TransferDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if transfer.Account != "" {
		m.applyDelta(transfer.Account, -transfer.Amount, transfer)
	}
	if transfer.Destination != "" {
		m.applyDelta(transfer.Destination, transfer.Amount, transfer)
	}

	return nil
}

func (m *MemoryStore) applyDelta(account string, delta float64, transfer *store.TransferDelta) {
	holder, ok := m.holders[account]
	if !ok {
		holder = &store.HolderData{Account: account}
		m.holders[account] = holder
	}
	holder.Balance += delta
	holder.LastUpdated = transfer.Timestamp
	holder.LastTxHash = transfer.Hash
}

func (m *MemoryStore) UpsertReview(_ context.Context, review *store.ReviewData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *review
	m.reviews[review.Hash] = &cp
	return nil
}

func (m *MemoryStore) GetReview(_ context.Context, hash string) (*store.ReviewData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	review, ok := m.reviews[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *review
	return &cp, nil
}

func (m *MemoryStore) ListEnrichedReviews(_ context.Context, limit int) ([]*store.EnrichedReview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*store.EnrichedReview
	for hash, review := range m.reviews {
		enriched := &store.EnrichedReview{Review: *review}
		if memo, ok := m.memos[hash]; ok {
			enriched.Memo = cloneMemo(memo)
		}
		result = append(result, enriched)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Review.ReviewedAt.Equal(result[j].Review.ReviewedAt) {
			return strings.Compare(result[i].Review.Hash, result[j].Review.Hash) < 0
		}
		return result[i].Review.ReviewedAt.Before(result[j].Review.ReviewedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (m *MemoryStore) UpsertAuthorization(_ context.Context, address *store.AuthorizedAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneAuthorization(address)
	m.authorizations[address.Address] = cp
	return nil
}

func (m *MemoryStore) GetAuthorization(_ context.Context, address string) (*store.AuthorizedAddress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	auth, ok := m.authorizations[address]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAuthorization(auth), nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close(_ context.Context) error { return nil }

func matchesFilter(memo *store.MemoData, filter store.MemoFilter) bool {
	if filter.Account != "" && memo.Account != filter.Account {
		return false
	}
	if filter.Destination != "" && memo.Destination != filter.Destination {
		return false
	}
	if filter.MemoType != "" && memo.MemoType != filter.MemoType {
		return false
	}
	if filter.MemoFormat != nil && memo.MemoFormat != *filter.MemoFormat {
		return false
	}
	if filter.MemoDataLike != nil && !store.MatchLike(memo.MemoData, *filter.MemoDataLike) {
		return false
	}
	if filter.TransactionResult != "" && memo.TransactionResult != filter.TransactionResult {
		return false
	}
	if filter.After != nil && !memo.Timestamp.After(*filter.After) {
		return false
	}
	if filter.From != nil && memo.Timestamp.Before(*filter.From) {
		return false
	}
	if filter.To != nil && memo.Timestamp.After(*filter.To) {
		return false
	}
	return true
}

func cloneMemo(memo *store.MemoData) *store.MemoData {
	cp := *memo
	if memo.PFTAmount != nil {
		amount := *memo.PFTAmount
		cp.PFTAmount = &amount
	}
	if memo.XRPFee != nil {
		fee := *memo.XRPFee
		cp.XRPFee = &fee
	}
	return &cp
}

func cloneAuthorization(auth *store.AuthorizedAddress) *store.AuthorizedAddress {
	cp := *auth
	if auth.DeauthorizedAt != nil {
		t := *auth.DeauthorizedAt
		cp.DeauthorizedAt = &t
	}
	if auth.FlagExpiresAt != nil {
		t := *auth.FlagExpiresAt
		cp.FlagExpiresAt = &t
	}
	return &cp
}
