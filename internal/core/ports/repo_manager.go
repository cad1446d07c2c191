package ports

import "github.com/openlancer/escrowd/internal/core/domain"

type RepoManager interface {
	Escrow() domain.EscrowRepository
	Bid() domain.BidRepository
	Session() domain.SessionRepository
	Close()
}
