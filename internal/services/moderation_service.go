package services

import (
	"context"
	"database/sql"
	"time"

	"dealdrop/internal/domain"
	applog "dealdrop/internal/log"
	"dealdrop/internal/repos"
)

// transitionRole is the full lifecycle table: which adjacent moves
// exist and the minimum role that may trigger each. Anything absent is
// an invalid transition regardless of caller.
var transitionRole = map[domain.DealStatus]map[domain.DealStatus]domain.Role{
	domain.StatusDraft: {
		domain.StatusPendingReview: domain.RoleMember, // submit
	},
	domain.StatusPendingReview: {
		domain.StatusPublished: domain.RoleModerator, // approve
		domain.StatusRejected:  domain.RoleModerator, // reject
	},
	domain.StatusPublished: {
		domain.StatusExpired: domain.RoleModerator, // manual expire
		domain.StatusRemoved: domain.RoleAdmin,     // takedown
	},
	domain.StatusRejected: {
		domain.StatusPendingReview: domain.RoleAdmin, // reopen
	},
	domain.StatusExpired: {
		domain.StatusPendingReview: domain.RoleAdmin,
	},
	domain.StatusRemoved: {
		domain.StatusPendingReview: domain.RoleAdmin,
	},
}

// ModerationService owns the deal lifecycle. Role checks live here, not
// in the handlers, so a caller can never smuggle a transition past the
// table. Transitions on one deal are serialized by the per-deal lock
// and the status column is compare-and-swapped, so two racing
// moderators resolve to exactly one winner.
type ModerationService struct {
	Deals *repos.DealRepo
	locks *dealLocks
}

func NewModerationService(deals *repos.DealRepo) *ModerationService {
	return &ModerationService{Deals: deals, locks: newDealLocks()}
}

// Submit moves the actor's own draft into the review queue.
func (s *ModerationService) Submit(dealID string, actor *domain.User) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	d, err := s.get(dealID)
	if err != nil {
		return err
	}
	if d.SubmitterID != actor.ID {
		return domain.ErrForbidden
	}
	return s.transition(dealID, actor, domain.StatusDraft, domain.StatusPendingReview)
}

func (s *ModerationService) Approve(dealID string, actor *domain.User) error {
	return s.transition(dealID, actor, domain.StatusPendingReview, domain.StatusPublished)
}

func (s *ModerationService) Reject(dealID string, actor *domain.User) error {
	return s.transition(dealID, actor, domain.StatusPendingReview, domain.StatusRejected)
}

// Expire is the manual trigger; the sweeper handles timer expiry.
func (s *ModerationService) Expire(dealID string, actor *domain.User) error {
	return s.transition(dealID, actor, domain.StatusPublished, domain.StatusExpired)
}

func (s *ModerationService) Takedown(dealID string, actor *domain.User) error {
	return s.transition(dealID, actor, domain.StatusPublished, domain.StatusRemoved)
}

// Reopen puts a closed deal back into the review queue.
func (s *ModerationService) Reopen(dealID string, actor *domain.User) error {
	d, err := s.get(dealID)
	if err != nil {
		return err
	}
	switch d.Status {
	case domain.StatusRejected, domain.StatusExpired, domain.StatusRemoved:
		return s.transition(dealID, actor, d.Status, domain.StatusPendingReview)
	default:
		return domain.ErrInvalidTransition
	}
}

// Queue lists deals waiting for review, oldest first.
func (s *ModerationService) Queue(limit int) ([]domain.Deal, error) {
	return s.Deals.ListByStatus(domain.StatusPendingReview, limit)
}

func (s *ModerationService) get(dealID string) (domain.Deal, error) {
	d, err := s.Deals.Get(dealID)
	if err == sql.ErrNoRows {
		return domain.Deal{}, domain.ErrNotFound
	}
	return d, err
}

func (s *ModerationService) transition(dealID string, actor *domain.User, from, to domain.DealStatus) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	min, ok := transitionRole[from][to]
	if !ok {
		return domain.ErrInvalidTransition
	}
	if !actor.CapabilityRole().AtLeast(min) {
		return domain.ErrForbidden
	}

	unlock := s.locks.lock(dealID)
	defer unlock()

	d, err := s.get(dealID)
	if err != nil {
		return err
	}
	if d.Status != from {
		if d.Status == to {
			// the state already moved; a racing caller got here first
			return domain.ErrConflict
		}
		return domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	moved, err := s.Deals.TransitionStatus(dealID, from, to, now)
	if err != nil {
		return err
	}
	if moved {
		return nil
	}

	// Lost a race outside this process. Retry once against the latest
	// state before surfacing the conflict.
	d, err = s.get(dealID)
	if err != nil {
		return err
	}
	if d.Status == from {
		moved, err = s.Deals.TransitionStatus(dealID, from, to, now)
		if err != nil {
			return err
		}
		if moved {
			return nil
		}
	}
	return domain.ErrConflict
}

// SweepExpired expires every published deal past its expiry, acting as
// the system role.
func (s *ModerationService) SweepExpired(now time.Time) (int64, error) {
	return s.Deals.ExpireDue(now)
}

// RunExpirySweeper ticks until ctx is done.
func (s *ModerationService) RunExpirySweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.SweepExpired(now.UTC())
			if err != nil {
				applog.System("moderation.expire.sweep.fail", err, nil)
			} else if n > 0 {
				applog.System("moderation.expire.sweep", nil, map[string]any{"expired": n})
			}
		}
	}
}
