package repos

import (
	"database/sql"
	"time"

	"dealdrop/internal/domain"

	"github.com/jmoiron/sqlx"
)

type EngagementRepo struct{ db *sqlx.DB }

func NewEngagementRepo(db *sqlx.DB) *EngagementRepo { return &EngagementRepo{db: db} }

func (r *EngagementRepo) Snapshot(dealID string) (domain.EngagementSnapshot, error) {
	var s domain.EngagementSnapshot
	err := r.db.Get(&s, `
	  SELECT deal_id, upvotes, downvotes, views, comments
	  FROM engagement WHERE deal_id = ?
	`, dealID)
	if err == sql.ErrNoRows {
		return domain.EngagementSnapshot{}, domain.ErrNotFound
	}
	return s, err
}

// RecordView counts one view per (deal, fingerprint) per dedup window.
// Returns whether the view was counted.
func (r *EngagementRepo) RecordView(dealID, fingerprint string, now time.Time, window time.Duration) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var seen string
	err = tx.Get(&seen, `SELECT seen_at FROM view_events WHERE deal_id = ? AND fingerprint = ?`, dealID, fingerprint)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if err == nil {
		if t, ok := domain.ParseTime(seen); ok && now.Sub(t) < window {
			return false, nil
		}
	}

	nowStr := now.UTC().Format(domain.TimeLayout)
	if _, err := tx.Exec(`
	  INSERT INTO view_events(deal_id, fingerprint, seen_at) VALUES(?,?,?)
	  ON CONFLICT(deal_id, fingerprint) DO UPDATE SET seen_at = excluded.seen_at
	`, dealID, fingerprint, nowStr); err != nil {
		return false, err
	}
	if _, err := tx.Exec(`
	  UPDATE engagement SET views = views + 1, updated_at = ? WHERE deal_id = ?
	`, nowStr, dealID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
