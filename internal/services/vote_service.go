package services

import (
	"dealdrop/internal/domain"
	"dealdrop/internal/repos"
)

// VoteService is the vote ledger. A user holds at most one active vote
// per deal: casting the same direction twice withdraws it, the opposite
// direction replaces it. Casts on the same deal are serialized by a
// per-deal lock around the repo transaction so concurrent votes can
// neither lose counter updates nor double-register.
type VoteService struct {
	Votes *repos.VoteRepo
	locks *dealLocks
}

func NewVoteService(votes *repos.VoteRepo) *VoteService {
	return &VoteService{Votes: votes, locks: newDealLocks()}
}

// Cast applies a vote and returns the caller's effective vote state on
// the deal afterwards.
func (s *VoteService) Cast(dealID string, actor *domain.User, dir domain.VoteDirection) (domain.VoteState, error) {
	if actor == nil {
		return domain.NoVote, domain.ErrUnauthenticated
	}
	if !actor.CapabilityRole().AtLeast(domain.RoleMember) {
		return domain.NoVote, domain.ErrForbidden
	}

	unlock := s.locks.lock(dealID)
	defer unlock()
	return s.Votes.Cast(dealID, actor.ID, dir)
}

// Remove withdraws the caller's vote; no-op when none exists.
func (s *VoteService) Remove(dealID string, actor *domain.User) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	if !actor.CapabilityRole().AtLeast(domain.RoleMember) {
		return domain.ErrForbidden
	}
	unlock := s.locks.lock(dealID)
	defer unlock()
	return s.Votes.Remove(dealID, actor.ID)
}

// State reports the caller's current vote on a deal.
func (s *VoteService) State(dealID string, actor *domain.User) (domain.VoteState, error) {
	if actor == nil {
		return domain.NoVote, nil
	}
	v, err := s.Votes.Get(dealID, actor.ID)
	if err != nil {
		return domain.NoVote, err
	}
	if v == nil {
		return domain.NoVote, nil
	}
	return v.Direction.State(), nil
}
