package repos

import (
	"database/sql"
	"time"

	"dealdrop/internal/domain"

	"github.com/jmoiron/sqlx"
)

type CommentRepo struct{ db *sqlx.DB }

func NewCommentRepo(db *sqlx.DB) *CommentRepo { return &CommentRepo{db: db} }

// CommentRow joins the author name for rendering.
type CommentRow struct {
	ID        string `db:"id"`
	DealID    string `db:"deal_id"`
	UserID    string `db:"user_id"`
	Author    string `db:"author"`
	Body      string `db:"body"`
	CreatedAt string `db:"created_at"`
}

// Add inserts the comment and bumps the deal's comment counter in one
// transaction.
func (r *CommentRepo) Add(c domain.Comment) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
	  INSERT INTO comments(id, deal_id, user_id, body, created_at) VALUES(?,?,?,?,?)
	`, c.ID, c.DealID, c.UserID, c.Body, c.CreatedAt); err != nil {
		return err
	}
	now := time.Now().UTC().Format(domain.TimeLayout)
	if _, err := tx.Exec(`
	  UPDATE engagement SET comments = comments + 1, updated_at = ? WHERE deal_id = ?
	`, now, c.DealID); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the comment and decrements the counter, guarding
// against going negative.
func (r *CommentRepo) Delete(commentID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var dealID string
	err = tx.Get(&dealID, `SELECT deal_id FROM comments WHERE id = ?`, commentID)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM comments WHERE id = ?`, commentID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(domain.TimeLayout)
	if _, err := tx.Exec(`
	  UPDATE engagement SET comments = comments - 1, updated_at = ?
	  WHERE deal_id = ? AND comments > 0
	`, now, dealID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CommentRepo) Get(commentID string) (domain.Comment, error) {
	var c domain.Comment
	err := r.db.Get(&c, `SELECT id, deal_id, user_id, body, created_at FROM comments WHERE id = ?`, commentID)
	return c, err
}

func (r *CommentRepo) ListByDeal(dealID string, limit int) ([]CommentRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []CommentRow
	err := r.db.Select(&out, `
	  SELECT c.id, c.deal_id, c.user_id, u.name AS author, c.body, c.created_at
	  FROM comments c JOIN users u ON u.id = c.user_id
	  WHERE c.deal_id = ?
	  ORDER BY c.created_at ASC, c.id ASC
	  LIMIT ?
	`, dealID, limit)
	return out, err
}
