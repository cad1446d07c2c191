package db

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/openlancer/escrowd/internal/core/ports"
	badgerdb "github.com/openlancer/escrowd/internal/infrastructure/db/badger"
)

type ServiceConfig struct {
	DbType   string
	DbConfig []any
}

type service struct {
	escrowRepo  domain.EscrowRepository
	bidRepo     domain.BidRepository
	sessionRepo domain.SessionRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	var (
		escrowRepo  domain.EscrowRepository
		bidRepo     domain.BidRepository
		sessionRepo domain.SessionRepository
		err         error
	)

	switch config.DbType {
	case "badger":
		if len(config.DbConfig) != 2 {
			return nil, fmt.Errorf("badger db config must have 2 elements, got %d", len(config.DbConfig))
		}
		baseDir, ok := config.DbConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}
		var logger badger.Logger
		if config.DbConfig[1] != nil {
			logger, ok = config.DbConfig[1].(badger.Logger)
			if !ok {
				return nil, fmt.Errorf("invalid logger")
			}
		}
		escrowRepo, err = badgerdb.NewEscrowRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open escrow db: %s", err)
		}
		bidRepo, err = badgerdb.NewBidRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open bid db: %s", err)
		}
		sessionRepo, err = badgerdb.NewSessionRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open session db: %s", err)
		}
	default:
		return nil, fmt.Errorf("unsupported db type %s, please select one of: badger", config.DbType)
	}

	return &service{
		escrowRepo:  escrowRepo,
		bidRepo:     bidRepo,
		sessionRepo: sessionRepo,
	}, nil
}

func (s *service) Escrow() domain.EscrowRepository {
	return s.escrowRepo
}

func (s *service) Bid() domain.BidRepository {
	return s.bidRepo
}

func (s *service) Session() domain.SessionRepository {
	return s.sessionRepo
}

func (s *service) Close() {
	s.escrowRepo.Close()
	s.bidRepo.Close()
	s.sessionRepo.Close()
}
