package services

import (
	"database/sql"
	"time"

	"dealdrop/internal/domain"
	applog "dealdrop/internal/log"
	"dealdrop/internal/repos"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type viewEvent struct {
	dealID      string
	fingerprint string
	at          time.Time
}

// EngagementService maintains the derived per-deal counters. Views are
// advisory ranking input, so they are recorded asynchronously and
// best-effort: a bounded queue feeds a single writer goroutine, a rate
// limiter sheds floods, and failures are logged and swallowed. Votes
// and comments stay transactional in their repos.
type EngagementService struct {
	Eng      *repos.EngagementRepo
	Comments *repos.CommentRepo
	Deals    *repos.DealRepo

	window  time.Duration
	limiter *rate.Limiter
	queue   chan viewEvent
	done    chan struct{}
	stopped chan struct{}
}

func NewEngagementService(eng *repos.EngagementRepo, comments *repos.CommentRepo, deals *repos.DealRepo, dedupWindow time.Duration) *EngagementService {
	s := &EngagementService{
		Eng:      eng,
		Comments: comments,
		Deals:    deals,
		window:   dedupWindow,
		limiter:  rate.NewLimiter(rate.Limit(200), 400), // global view-write flood guard
		queue:    make(chan viewEvent, 1024),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// RecordView enqueues one view for (deal, fingerprint). Fire-and-forget:
// drops silently when the queue is full or the flood limiter trips.
func (s *EngagementService) RecordView(dealID, fingerprint string) {
	if fingerprint == "" || !s.limiter.Allow() {
		return
	}
	select {
	case s.queue <- viewEvent{dealID: dealID, fingerprint: fingerprint, at: time.Now()}:
	default:
	}
}

func (s *EngagementService) writeLoop() {
	defer close(s.stopped)
	for {
		select {
		case ev := <-s.queue:
			s.record(ev)
		case <-s.done:
			s.Flush()
			return
		}
	}
}

func (s *EngagementService) record(ev viewEvent) {
	counted, err := s.Eng.RecordView(ev.dealID, ev.fingerprint, ev.at, s.window)
	if err != nil {
		applog.System("engagement.view.fail", err, map[string]any{"deal_id": ev.dealID})
		return
	}
	if counted {
		applog.System("engagement.view", nil, map[string]any{"deal_id": ev.dealID})
	}
}

// Close stops the writer and blocks until queued views are drained.
func (s *EngagementService) Close() {
	close(s.done)
	<-s.stopped
}

// Flush synchronously drains the queue; test hook.
func (s *EngagementService) Flush() {
	for {
		select {
		case ev := <-s.queue:
			s.record(ev)
		default:
			return
		}
	}
}

// Snapshot reads the current committed counters for a deal.
func (s *EngagementService) Snapshot(dealID string) (domain.EngagementSnapshot, error) {
	return s.Eng.Snapshot(dealID)
}

// AddComment creates a comment on a published deal and bumps its
// counter in the same transaction.
func (s *EngagementService) AddComment(dealID string, actor *domain.User, body string) (string, error) {
	if actor == nil {
		return "", domain.ErrUnauthenticated
	}
	if !actor.CapabilityRole().AtLeast(domain.RoleMember) {
		return "", domain.ErrForbidden
	}
	d, err := s.Deals.Get(dealID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	if d.Status != domain.StatusPublished || d.Expired(time.Now()) {
		return "", domain.ErrInvalidState
	}

	c := domain.Comment{
		ID:        uuid.NewString(),
		DealID:    dealID,
		UserID:    actor.ID,
		Body:      body,
		CreatedAt: time.Now().UTC().Format(domain.TimeLayout),
	}
	if err := s.Comments.Add(c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// DeleteComment removes a comment (author or moderator+) and decrements
// the deal's counter.
func (s *EngagementService) DeleteComment(commentID string, actor *domain.User) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	c, err := s.Comments.Get(commentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return err
	}
	if c.UserID != actor.ID && !actor.CapabilityRole().AtLeast(domain.RoleModerator) {
		return domain.ErrForbidden
	}
	return s.Comments.Delete(commentID)
}
