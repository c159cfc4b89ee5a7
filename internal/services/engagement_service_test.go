package services_test

import (
	"errors"
	"testing"
	"time"

	"dealdrop/internal/domain"
	"dealdrop/internal/repos"
	"dealdrop/internal/services"
)

func engSvc(t *testing.T, window time.Duration) (*services.EngagementService, func()) {
	t.Helper()
	db := memdb(t)
	svc := services.NewEngagementService(
		repos.NewEngagementRepo(db),
		repos.NewCommentRepo(db),
		repos.NewDealRepo(db),
		window,
	)
	return svc, svc.Close
}

func TestViewDedupWindow(t *testing.T) {
	eng := repos.NewEngagementRepo(memdb(t))
	now := time.Now().UTC()
	window := 30 * time.Minute

	counted, err := eng.RecordView("deal-1", "u:u-a", now, window)
	if err != nil || !counted {
		t.Fatalf("first view should count: %v %v", counted, err)
	}
	// same viewer inside the window: not counted
	counted, err = eng.RecordView("deal-1", "u:u-a", now.Add(5*time.Minute), window)
	if err != nil || counted {
		t.Fatalf("view inside window must dedup: %v %v", counted, err)
	}
	// different viewer counts
	counted, err = eng.RecordView("deal-1", "s:other", now.Add(5*time.Minute), window)
	if err != nil || !counted {
		t.Fatalf("distinct fingerprint should count: %v %v", counted, err)
	}
	// same viewer after the window counts again
	counted, err = eng.RecordView("deal-1", "u:u-a", now.Add(31*time.Minute), window)
	if err != nil || !counted {
		t.Fatalf("view after window should count: %v %v", counted, err)
	}

	s, err := eng.Snapshot("deal-1")
	if err != nil {
		t.Fatal(err)
	}
	if s.ViewCount != 3 {
		t.Fatalf("want 3 views, got %d", s.ViewCount)
	}
}

func TestAsyncViewsFlush(t *testing.T) {
	svc, done := engSvc(t, 30*time.Minute)
	defer done()

	svc.RecordView("deal-1", "u:u-a")
	svc.RecordView("deal-1", "u:u-b")
	svc.RecordView("deal-1", "") // no fingerprint: dropped
	svc.Flush()

	// the writer goroutine may have drained the queue before Flush;
	// poll the snapshot until both views land
	deadline := time.Now().Add(2 * time.Second)
	for {
		s, err := svc.Snapshot("deal-1")
		if err != nil {
			t.Fatal(err)
		}
		if s.ViewCount == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("want 2 views, got %d", s.ViewCount)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Shutdown must not lose views that are still queued.
func TestCloseDrainsQueuedViews(t *testing.T) {
	db := memdb(t)
	svc := services.NewEngagementService(
		repos.NewEngagementRepo(db),
		repos.NewCommentRepo(db),
		repos.NewDealRepo(db),
		30*time.Minute,
	)

	svc.RecordView("deal-1", "u:u-a")
	svc.RecordView("deal-1", "u:u-b")
	svc.Close()

	s, err := svc.Snapshot("deal-1")
	if err != nil {
		t.Fatal(err)
	}
	if s.ViewCount != 2 {
		t.Fatalf("want 2 views after Close, got %d", s.ViewCount)
	}
}

func TestCommentsAdjustCounters(t *testing.T) {
	svc, done := engSvc(t, time.Minute)
	defer done()
	a := member("u-a")

	id, err := svc.AddComment("deal-1", a, "great price")
	if err != nil {
		t.Fatal(err)
	}
	otherID, err := svc.AddComment("deal-1", member("u-b"), "meh")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := svc.Snapshot("deal-1")
	if s.CommentCount != 2 {
		t.Fatalf("want 2 comments, got %d", s.CommentCount)
	}

	if err := svc.DeleteComment(id, a); err != nil {
		t.Fatal(err)
	}
	s, _ = svc.Snapshot("deal-1")
	if s.CommentCount != 1 {
		t.Fatalf("want 1 comment after delete, got %d", s.CommentCount)
	}

	// only the author or a moderator may delete
	if err := svc.DeleteComment(otherID, a); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden deleting another user's comment, got %v", err)
	}
	if err := svc.DeleteComment(otherID, moderator()); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteComment("missing", a); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCommentRequiresPublishedDeal(t *testing.T) {
	db := memdb(t)
	svc := services.NewEngagementService(
		repos.NewEngagementRepo(db),
		repos.NewCommentRepo(db),
		repos.NewDealRepo(db),
		time.Minute,
	)
	defer svc.Close()

	if _, err := svc.AddComment("deal-pending", member("u-a"), "hi"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
	if _, err := svc.AddComment("deal-1", nil, "hi"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}

	// published but past expiry: closed to comments before the sweeper runs
	past := time.Now().UTC().Add(-time.Hour).Format(domain.TimeLayout)
	if _, err := db.Exec(`UPDATE deals SET expires_at=? WHERE id='deal-1'`, past); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddComment("deal-1", member("u-a"), "hi"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState for expired deal, got %v", err)
	}
}
