package repos

import (
	"time"

	"dealdrop/internal/domain"

	"github.com/jmoiron/sqlx"
)

type DealRepo struct{ db *sqlx.DB }

func NewDealRepo(db *sqlx.DB) *DealRepo { return &DealRepo{db: db} }

const dealCols = `
  id, category_id, shop_id, title, COALESCE(description,'') AS description,
  price, original_price, submitter_id, status,
  created_at, COALESCE(published_at,'') AS published_at,
  COALESCE(expires_at,'') AS expires_at, COALESCE(updated_at,'') AS updated_at`

func (r *DealRepo) Get(id string) (domain.Deal, error) {
	var d domain.Deal
	err := r.db.Get(&d, `SELECT `+dealCols+` FROM deals WHERE id = ?`, id)
	return d, err
}

// Create inserts a new deal together with its zeroed engagement row.
func (r *DealRepo) Create(d domain.Deal) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
	  INSERT INTO deals(id,category_id,shop_id,title,description,price,original_price,submitter_id,status,created_at,expires_at)
	  VALUES(?,?,?,?,?,?,?,?,?,?,NULLIF(?,''))
	`, d.ID, d.CategoryID, d.ShopID, d.Title, d.Description, d.Price, d.OriginalPrice,
		d.SubmitterID, d.Status, d.CreatedAt, d.ExpiresAt); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO engagement(deal_id) VALUES(?)`, d.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// PublishedRow is a deal joined with its engagement counters, the unit
// the ranking service scores and sorts.
type PublishedRow struct {
	domain.Deal
	Upvotes   int `db:"upvotes"`
	Downvotes int `db:"downvotes"`
	Views     int `db:"views"`
	Comments  int `db:"comments"`
}

// QueryPublished returns every published, unexpired deal (optionally
// filtered by category) with counters from a single statement, so one
// request scores one consistent snapshot.
func (r *DealRepo) QueryPublished(categoryID string, now time.Time) ([]PublishedRow, error) {
	nowStr := now.UTC().Format(domain.TimeLayout)
	q := `
	  SELECT d.id, d.category_id, d.shop_id, d.title, COALESCE(d.description,'') AS description,
	         d.price, d.original_price, d.submitter_id, d.status,
	         d.created_at, COALESCE(d.published_at,'') AS published_at,
	         COALESCE(d.expires_at,'') AS expires_at, COALESCE(d.updated_at,'') AS updated_at,
	         e.upvotes, e.downvotes, e.views, e.comments
	  FROM deals d
	  JOIN engagement e ON e.deal_id = d.id
	  WHERE d.status = 'PUBLISHED'
	    AND (d.expires_at IS NULL OR d.expires_at > ?)`
	args := []any{nowStr}
	if categoryID != "" {
		q += ` AND d.category_id = ?`
		args = append(args, categoryID)
	}
	var out []PublishedRow
	err := r.db.Select(&out, q, args...)
	return out, err
}

// ListByStatus returns deals in a given status, oldest first (the
// moderation queue order).
func (r *DealRepo) ListByStatus(status domain.DealStatus, limit int) ([]domain.Deal, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.Deal
	err := r.db.Select(&out, `
	  SELECT `+dealCols+` FROM deals
	  WHERE status = ?
	  ORDER BY created_at ASC, id ASC
	  LIMIT ?
	`, status, limit)
	return out, err
}

// TransitionStatus compare-and-swaps the status column. Returns false
// if the deal was no longer in from, which the caller treats as a lost
// race. published_at is set on the first publish only and never cleared.
func (r *DealRepo) TransitionStatus(id string, from, to domain.DealStatus, now time.Time) (bool, error) {
	nowStr := now.UTC().Format(domain.TimeLayout)
	res, err := r.db.Exec(`
	  UPDATE deals
	  SET status = ?,
	      published_at = CASE WHEN ? = 'PUBLISHED' THEN COALESCE(published_at, ?) ELSE published_at END,
	      updated_at = ?
	  WHERE id = ? AND status = ?
	`, to, to, nowStr, nowStr, id, from)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ExpireDue moves every published deal whose expiry passed into EXPIRED.
// Returns how many rows moved.
func (r *DealRepo) ExpireDue(now time.Time) (int64, error) {
	nowStr := now.UTC().Format(domain.TimeLayout)
	res, err := r.db.Exec(`
	  UPDATE deals SET status = 'EXPIRED', updated_at = ?
	  WHERE status = 'PUBLISHED' AND expires_at IS NOT NULL AND expires_at <= ?
	`, nowStr, nowStr)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SetExpiry updates the expiry on a deal (admin surface).
func (r *DealRepo) SetExpiry(id, expiresAt string) error {
	_, err := r.db.Exec(`UPDATE deals SET expires_at = NULLIF(?,''), updated_at = ? WHERE id = ?`,
		expiresAt, time.Now().UTC().Format(domain.TimeLayout), id)
	return err
}
