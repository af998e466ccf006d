package transactions

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
	"toll-payment/internal/transactions/entities"
	"toll-payment/internal/transactions/repository"
)

const shardCount = 64

type transactionShard struct {
	sync.RWMutex
	store map[string]*entities.Transaction
	// checkout id -> transaction ids in creation order
	byCheckout map[string][]string
}

// InMemoryTransactionDB keeps rows in hashed shards so contention stays on
// the shard that owns a given id.
type InMemoryTransactionDB struct {
	shards [shardCount]*transactionShard
}

func NewInMemoryTransactionDB() *InMemoryTransactionDB {
	db := &InMemoryTransactionDB{}
	for i := 0; i < shardCount; i++ {
		db.shards[i] = &transactionShard{
			store:      make(map[string]*entities.Transaction, 64),
			byCheckout: make(map[string][]string),
		}
	}
	return db
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % shardCount
}

func (db *InMemoryTransactionDB) getShard(key string) *transactionShard {
	return db.shards[shardIndex(key)]
}

// Create publishes the row and its checkout index entry together, so a
// callback never sees one without the other.
func (db *InMemoryTransactionDB) Create(ctx context.Context, tx *entities.Transaction) error {
	rowIdx, checkoutIdx := shardIndex(tx.ID), shardIndex(tx.CheckoutRequestID)
	shard, index := db.shards[rowIdx], db.shards[checkoutIdx]

	// Fixed lock order; no other path holds two shard locks.
	switch {
	case rowIdx == checkoutIdx:
		shard.Lock()
		defer shard.Unlock()
	case rowIdx < checkoutIdx:
		shard.Lock()
		index.Lock()
		defer shard.Unlock()
		defer index.Unlock()
	default:
		index.Lock()
		shard.Lock()
		defer index.Unlock()
		defer shard.Unlock()
	}

	if _, exists := shard.store[tx.ID]; exists {
		return repository.ErrDuplicate
	}
	row := *tx
	shard.store[tx.ID] = &row
	index.byCheckout[tx.CheckoutRequestID] = append(index.byCheckout[tx.CheckoutRequestID], tx.ID)
	return nil
}

func (db *InMemoryTransactionDB) Get(ctx context.Context, id string) (entities.Transaction, error) {
	shard := db.getShard(id)
	shard.RLock()
	defer shard.RUnlock()
	row, ok := shard.store[id]
	if !ok {
		return entities.Transaction{}, repository.ErrNotFound
	}
	return *row, nil
}

func (db *InMemoryTransactionDB) LatestByCheckoutID(ctx context.Context, checkoutID string) (entities.Transaction, error) {
	index := db.getShard(checkoutID)
	index.RLock()
	ids := append([]string(nil), index.byCheckout[checkoutID]...)
	index.RUnlock()

	var latest *entities.Transaction
	for _, id := range ids {
		row, err := db.Get(ctx, id)
		if err != nil {
			continue
		}
		if latest == nil || !row.CreatedAt.Before(latest.CreatedAt) {
			latest = &row
		}
	}
	if latest == nil {
		return entities.Transaction{}, repository.ErrNotFound
	}
	return *latest, nil
}

func (db *InMemoryTransactionDB) Complete(ctx context.Context, id string, outcome entities.Outcome) (bool, error) {
	shard := db.getShard(id)
	shard.Lock()
	defer shard.Unlock()

	row, ok := shard.store[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if row.Status != entities.StatusPending {
		return false, nil
	}
	row.Status = outcome.Status
	row.ReceiptReference = outcome.ReceiptReference
	row.ResultDesc = outcome.ResultDesc
	row.UpdatedAt = outcome.At
	return true, nil
}

func (db *InMemoryTransactionDB) LatestUnconsumedSuccess(ctx context.Context) (entities.Transaction, error) {
	var latest *entities.Transaction
	for _, shard := range db.shards {
		shard.RLock()
		for _, row := range shard.store {
			if row.Status != entities.StatusSuccess || row.GateConsumed {
				continue
			}
			if latest == nil || row.UpdatedAt.After(latest.UpdatedAt) {
				copied := *row
				latest = &copied
			}
		}
		shard.RUnlock()
	}
	if latest == nil {
		return entities.Transaction{}, repository.ErrNotFound
	}
	return *latest, nil
}

func (db *InMemoryTransactionDB) ConsumeGate(ctx context.Context, id string, at time.Time) (bool, error) {
	shard := db.getShard(id)
	shard.Lock()
	defer shard.Unlock()

	row, ok := shard.store[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if row.Status != entities.StatusSuccess || row.GateConsumed {
		return false, nil
	}
	row.GateConsumed = true
	consumedAt := at
	row.GateConsumedAt = &consumedAt
	return true, nil
}
