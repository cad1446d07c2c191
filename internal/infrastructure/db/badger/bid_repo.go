package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const bidDir = "bid"

type bidRepository struct {
	store *badgerhold.Store
}

func NewBidRepository(baseDir string, logger badger.Logger) (domain.BidRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, bidDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open bid store: %s", err)
	}
	return &bidRepository{store}, nil
}

func (r *bidRepository) GetByEscrow(ctx context.Context, escrowId string) ([]domain.Bid, error) {
	var bids []domain.Bid
	query := badgerhold.Where("EscrowId").Eq(escrowId)
	if err := r.store.Find(&bids, query); err != nil {
		return nil, fmt.Errorf("failed to get bids for escrow %s: %w", escrowId, err)
	}
	return bids, nil
}

func (r *bidRepository) Get(ctx context.Context, key string) (*domain.Bid, error) {
	var bid domain.Bid
	err := r.store.Get(key, &bid)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("bid %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return &bid, nil
}

// Add stores a new bid. Bids are immutable once persisted, a key collision
// is an error.
func (r *bidRepository) Add(ctx context.Context, bid domain.Bid) error {
	return r.store.Insert(bid.Key(), bid)
}

func (r *bidRepository) Close() {
	// nolint:all
	r.store.Close()
}
