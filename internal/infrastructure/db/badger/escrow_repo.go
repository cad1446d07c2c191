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

const escrowDir = "escrow"

type escrowRepository struct {
	store *badgerhold.Store
}

func NewEscrowRepository(baseDir string, logger badger.Logger) (domain.EscrowRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, escrowDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open escrow store: %s", err)
	}
	return &escrowRepository{store}, nil
}

func (r *escrowRepository) GetAll(ctx context.Context) ([]domain.EscrowRecord, error) {
	var escrows []domain.EscrowRecord
	if err := r.store.Find(&escrows, nil); err != nil {
		return nil, fmt.Errorf("failed to get all escrows: %w", err)
	}
	return escrows, nil
}

func (r *escrowRepository) Get(ctx context.Context, escrowId string) (*domain.EscrowRecord, error) {
	var escrow domain.EscrowRecord
	err := r.store.Get(escrowId, &escrow)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("escrow %s: %w", escrowId, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	return &escrow, nil
}

// Add stores a new escrow record in the database
func (r *escrowRepository) Add(ctx context.Context, escrow domain.EscrowRecord) error {
	return r.store.Insert(escrow.Id, escrow)
}

func (r *escrowRepository) Update(ctx context.Context, escrow domain.EscrowRecord) error {
	return r.store.Update(escrow.Id, escrow)
}

func (r *escrowRepository) Close() {
	// nolint:all
	r.store.Close()
}
