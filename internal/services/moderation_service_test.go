package services_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"dealdrop/internal/domain"
	"dealdrop/internal/repos"
	"dealdrop/internal/services"
)

func moderator() *domain.User { return &domain.User{ID: "u-mod", Role: "MODERATOR"} }
func admin() *domain.User     { return &domain.User{ID: "u-admin", Role: "ADMIN"} }

func insertDraft(t *testing.T, db *sqlx.DB, id, submitter string) {
	t.Helper()
	if _, err := db.Exec(`
	  INSERT INTO deals(id,category_id,shop_id,title,price,original_price,submitter_id,status,created_at)
	  VALUES(?,?,?,?,?,?,?,?,?)`,
		id, "electronics", "techmart", "Draft "+id, 9.99, 0, submitter, "DRAFT", "2026-08-01T09:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO engagement(deal_id) VALUES(?)`, id); err != nil {
		t.Fatal(err)
	}
}

func dealStatus(t *testing.T, db *sqlx.DB, id string) domain.DealStatus {
	t.Helper()
	var s string
	if err := db.Get(&s, `SELECT status FROM deals WHERE id=?`, id); err != nil {
		t.Fatal(err)
	}
	return domain.DealStatus(s)
}

func TestLifecycleHappyPath(t *testing.T) {
	db := memdb(t)
	svc := services.NewModerationService(repos.NewDealRepo(db))
	insertDraft(t, db, "d1", "u-a")

	if err := svc.Submit("d1", member("u-a")); err != nil {
		t.Fatal(err)
	}
	if got := dealStatus(t, db, "d1"); got != domain.StatusPendingReview {
		t.Fatalf("want PENDING_REVIEW, got %s", got)
	}

	if err := svc.Approve("d1", moderator()); err != nil {
		t.Fatal(err)
	}
	if got := dealStatus(t, db, "d1"); got != domain.StatusPublished {
		t.Fatalf("want PUBLISHED, got %s", got)
	}

	// publishedAt set exactly once
	var publishedAt string
	if err := db.Get(&publishedAt, `SELECT published_at FROM deals WHERE id='d1'`); err != nil {
		t.Fatal(err)
	}
	if publishedAt == "" {
		t.Fatal("published_at not set on first publish")
	}

	if err := svc.Takedown("d1", admin()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reopen("d1", admin()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Approve("d1", moderator()); err != nil {
		t.Fatal(err)
	}

	// re-publish must keep the original timestamp
	var again string
	if err := db.Get(&again, `SELECT published_at FROM deals WHERE id='d1'`); err != nil {
		t.Fatal(err)
	}
	if again != publishedAt {
		t.Fatalf("published_at changed on re-publish: %s -> %s", publishedAt, again)
	}
}

func TestTransitionsNeverSkipStates(t *testing.T) {
	db := memdb(t)
	svc := services.NewModerationService(repos.NewDealRepo(db))
	insertDraft(t, db, "d2", "u-a")

	// draft cannot be approved directly
	if err := svc.Approve("d2", moderator()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if got := dealStatus(t, db, "d2"); got != domain.StatusDraft {
		t.Fatalf("status must be unchanged, got %s", got)
	}

	// a published deal cannot be rejected
	if err := svc.Reject("deal-1", moderator()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if got := dealStatus(t, db, "deal-1"); got != domain.StatusPublished {
		t.Fatalf("status must be unchanged, got %s", got)
	}
}

func TestRoleGates(t *testing.T) {
	db := memdb(t)
	svc := services.NewModerationService(repos.NewDealRepo(db))

	// member cannot approve
	if err := svc.Approve("deal-pending", member("u-b")); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden for member approve, got %v", err)
	}
	// moderator cannot take down a published deal
	if err := svc.Takedown("deal-1", moderator()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden for moderator takedown, got %v", err)
	}
	// moderator cannot reopen
	if err := svc.Reject("deal-pending", moderator()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reopen("deal-pending", moderator()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden for moderator reopen, got %v", err)
	}
	// admin can
	if err := svc.Reopen("deal-pending", admin()); err != nil {
		t.Fatal(err)
	}
	// submitting someone else's draft is forbidden
	insertDraft(t, db, "d3", "u-a")
	if err := svc.Submit("d3", member("u-b")); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	// anonymous gets unauthenticated
	if err := svc.Approve("deal-pending", nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
}

func TestConcurrentApproveSingleWinner(t *testing.T) {
	db := memdb(t)
	svc := services.NewModerationService(repos.NewDealRepo(db))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Approve("deal-pending", moderator())
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("want exactly one winner, got won=%d lost=%d", won, lost)
	}
	if got := dealStatus(t, db, "deal-pending"); got != domain.StatusPublished {
		t.Fatalf("want PUBLISHED, got %s", got)
	}
}

func TestExpirySweep(t *testing.T) {
	db := memdb(t)
	svc := services.NewModerationService(repos.NewDealRepo(db))

	past := time.Now().UTC().Add(-time.Hour).Format(domain.TimeLayout)
	future := time.Now().UTC().Add(time.Hour).Format(domain.TimeLayout)
	if _, err := db.Exec(`UPDATE deals SET expires_at=? WHERE id='deal-1'`, past); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`
	  INSERT INTO deals(id,category_id,shop_id,title,price,original_price,submitter_id,status,created_at,expires_at)
	  VALUES('deal-fresh','electronics','techmart','Fresh',5,0,'u-a','PUBLISHED','2026-08-01T10:00:00Z',?)`, future); err != nil {
		t.Fatal(err)
	}

	n, err := svc.SweepExpired(time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("want 1 expired, got %d", n)
	}
	if got := dealStatus(t, db, "deal-1"); got != domain.StatusExpired {
		t.Fatalf("want EXPIRED, got %s", got)
	}
	if got := dealStatus(t, db, "deal-fresh"); got != domain.StatusPublished {
		t.Fatalf("future expiry must stay PUBLISHED, got %s", got)
	}
}
