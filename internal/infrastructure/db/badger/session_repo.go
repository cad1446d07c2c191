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

const sessionDir = "session"

type sessionRepository struct {
	store *badgerhold.Store
}

func NewSessionRepository(baseDir string, logger badger.Logger) (domain.SessionRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, sessionDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %s", err)
	}
	return &sessionRepository{store}, nil
}

func (r *sessionRepository) GetAll(ctx context.Context) ([]domain.AnchorSession, error) {
	var sessions []domain.AnchorSession
	if err := r.store.Find(&sessions, nil); err != nil {
		return nil, fmt.Errorf("failed to get all sessions: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepository) Get(ctx context.Context, sessionId string) (*domain.AnchorSession, error) {
	var session domain.AnchorSession
	err := r.store.Get(sessionId, &session)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("session %s: %w", sessionId, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) Add(ctx context.Context, session domain.AnchorSession) error {
	return r.store.Insert(session.Id, session)
}

func (r *sessionRepository) Update(ctx context.Context, session domain.AnchorSession) error {
	return r.store.Update(session.Id, session)
}

func (r *sessionRepository) Close() {
	// nolint:all
	r.store.Close()
}
