package repos

import (
	"database/sql"
	"time"

	"dealdrop/internal/domain"

	"github.com/jmoiron/sqlx"
)

type VoteRepo struct{ db *sqlx.DB }

func NewVoteRepo(db *sqlx.DB) *VoteRepo { return &VoteRepo{db: db} }

func (r *VoteRepo) Get(dealID, userID string) (*domain.Vote, error) {
	var v domain.Vote
	err := r.db.Get(&v, `
	  SELECT deal_id, user_id, direction, COALESCE(updated_at,'') AS updated_at
	  FROM votes WHERE deal_id = ? AND user_id = ?
	`, dealID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Cast applies the toggle/replace rule and the matching counter deltas
// in one transaction: same direction twice withdraws, opposite replaces,
// none inserts. Returns the effective vote state afterwards. The deal's
// status is re-checked inside the transaction so a vote can never land
// on a deal that left PUBLISHED between the caller's check and commit.
func (r *VoteRepo) Cast(dealID, userID string, dir domain.VoteDirection) (domain.VoteState, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return domain.NoVote, err
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		Status    string `db:"status"`
		ExpiresAt string `db:"expires_at"`
	}
	if err := tx.Get(&row, `SELECT status, COALESCE(expires_at,'') AS expires_at FROM deals WHERE id = ?`, dealID); err != nil {
		if err == sql.ErrNoRows {
			return domain.NoVote, domain.ErrNotFound
		}
		return domain.NoVote, err
	}
	if domain.DealStatus(row.Status) != domain.StatusPublished {
		return domain.NoVote, domain.ErrInvalidState
	}
	// A past expiry closes the deal to votes even before the sweeper
	// flips its status.
	if t, ok := domain.ParseTime(row.ExpiresAt); ok && !t.After(time.Now()) {
		return domain.NoVote, domain.ErrInvalidState
	}

	var current string
	err = tx.Get(&current, `SELECT direction FROM votes WHERE deal_id = ? AND user_id = ?`, dealID, userID)
	if err != nil && err != sql.ErrNoRows {
		return domain.NoVote, err
	}
	now := time.Now().UTC().Format(domain.TimeLayout)

	var state domain.VoteState
	var dUp, dDown int
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO votes(deal_id,user_id,direction,updated_at) VALUES(?,?,?,?)`,
			dealID, userID, dir, now); err != nil {
			return domain.NoVote, err
		}
		dUp, dDown = deltas(dir, +1)
		state = dir.State()
	case domain.VoteDirection(current) == dir:
		// toggle-off
		if _, err := tx.Exec(`DELETE FROM votes WHERE deal_id = ? AND user_id = ?`, dealID, userID); err != nil {
			return domain.NoVote, err
		}
		dUp, dDown = deltas(dir, -1)
		state = domain.NoVote
	default:
		if _, err := tx.Exec(`UPDATE votes SET direction = ?, updated_at = ? WHERE deal_id = ? AND user_id = ?`,
			dir, now, dealID, userID); err != nil {
			return domain.NoVote, err
		}
		oldUp, oldDown := deltas(domain.VoteDirection(current), -1)
		newUp, newDown := deltas(dir, +1)
		dUp, dDown = oldUp+newUp, oldDown+newDown
		state = dir.State()
	}

	if err := bumpVoteCounts(tx, dealID, dUp, dDown, now); err != nil {
		return domain.NoVote, err
	}
	if err := tx.Commit(); err != nil {
		return domain.NoVote, err
	}
	return state, nil
}

// Remove withdraws any existing vote; no-op when none exists.
func (r *VoteRepo) Remove(dealID, userID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.Get(&current, `SELECT direction FROM votes WHERE deal_id = ? AND user_id = ?`, dealID, userID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM votes WHERE deal_id = ? AND user_id = ?`, dealID, userID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(domain.TimeLayout)
	dUp, dDown := deltas(domain.VoteDirection(current), -1)
	if err := bumpVoteCounts(tx, dealID, dUp, dDown, now); err != nil {
		return err
	}
	return tx.Commit()
}

func deltas(dir domain.VoteDirection, by int) (up, down int) {
	if dir == domain.VoteDown {
		return 0, by
	}
	return by, 0
}

// bumpVoteCounts adjusts counters with the same guarded-UPDATE idiom as
// stock decrements: the WHERE clause refuses to drive a count negative.
func bumpVoteCounts(tx *sqlx.Tx, dealID string, dUp, dDown int, now string) error {
	res, err := tx.Exec(`
	  UPDATE engagement
	  SET upvotes = upvotes + ?, downvotes = downvotes + ?, updated_at = ?
	  WHERE deal_id = ? AND upvotes + ? >= 0 AND downvotes + ? >= 0
	`, dUp, dDown, now, dealID, dUp, dDown)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}
