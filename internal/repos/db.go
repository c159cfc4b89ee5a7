package repos

import (
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed baseline data if DB is empty (categories/shops/deals)
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	// Ensure one account per role exists (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name_nocase ON categories(LOWER(name));

-- Shops
CREATE TABLE IF NOT EXISTS shops(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  url TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

-- Deals
CREATE TABLE IF NOT EXISTS deals(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
  shop_id TEXT NOT NULL REFERENCES shops(id) ON DELETE RESTRICT,
  title TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL CHECK (price >= 0),
  original_price NUMERIC NOT NULL DEFAULT 0 CHECK (original_price >= 0),
  submitter_id TEXT NOT NULL REFERENCES users(id),
  status TEXT NOT NULL CHECK (status IN ('DRAFT','PENDING_REVIEW','PUBLISHED','REJECTED','EXPIRED','REMOVED')),
  created_at TEXT NOT NULL,
  published_at TEXT,
  expires_at TEXT,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_deals_status     ON deals(status);
CREATE INDEX IF NOT EXISTS idx_deals_category   ON deals(category_id);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);
CREATE INDEX IF NOT EXISTS idx_deals_expires_at ON deals(expires_at);

-- Vote ledger: one active vote per (deal, user)
CREATE TABLE IF NOT EXISTS votes(
  deal_id TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  direction TEXT NOT NULL CHECK (direction IN ('UP','DOWN')),
  updated_at TEXT,
  PRIMARY KEY (deal_id, user_id)
);

-- Engagement counters, derived from votes and view/comment events
CREATE TABLE IF NOT EXISTS engagement(
  deal_id TEXT PRIMARY KEY REFERENCES deals(id) ON DELETE CASCADE,
  upvotes   INTEGER NOT NULL DEFAULT 0 CHECK (upvotes >= 0),
  downvotes INTEGER NOT NULL DEFAULT 0 CHECK (downvotes >= 0),
  views     INTEGER NOT NULL DEFAULT 0 CHECK (views >= 0),
  comments  INTEGER NOT NULL DEFAULT 0 CHECK (comments >= 0),
  updated_at TEXT
);

-- View dedup: last counted view per (deal, viewer fingerprint)
CREATE TABLE IF NOT EXISTS view_events(
  deal_id TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
  fingerprint TEXT NOT NULL,
  seen_at TEXT NOT NULL,
  PRIMARY KEY (deal_id, fingerprint)
);

-- Comments
CREATE TABLE IF NOT EXISTS comments(
  id TEXT PRIMARY KEY,
  deal_id TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL REFERENCES users(id),
  body TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_deal ON comments(deal_id);

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('MEMBER','MODERATOR','ADMIN','ROOT_ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo categories/shops/deals")

	now := time.Now().UTC().Format(time.RFC3339)

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO categories(id,name) VALUES
	  ('electronics','Electronics'),
	  ('gaming','Gaming'),
	  ('home-kitchen','Home & Kitchen'),
	  ('fashion','Fashion')`)

	tx.MustExec(`INSERT INTO shops(id,name,url) VALUES
	  ('techmart','TechMart','https://techmart.example'),
	  ('gamestop-like','Level Up Games','https://levelup.example'),
	  ('homeware','Homeware Direct','https://homeware.example')`)

	// Seed users must exist before deals reference them.
	if err := insertSeedUsers(tx); err != nil {
		return err
	}

	tx.MustExec(`INSERT INTO deals(id,category_id,shop_id,title,description,price,original_price,submitter_id,status,created_at,published_at) VALUES
	  ('deal-headset','electronics','techmart','Wireless Headset 40% off','Over-ear, noise cancelling',59.99,99.99,'u-mina','PUBLISHED',?,?),
	  ('deal-switch','gaming','gamestop-like','Console bundle with two games','Includes dock and extra controller',279.00,349.00,'u-mina','PUBLISHED',?,?),
	  ('deal-airfryer','home-kitchen','homeware','5L air fryer clearance','Last season model',39.90,89.90,'u-omar','PENDING_REVIEW',?,NULL)`,
		now, now, now, now, now)

	tx.MustExec(`INSERT INTO engagement(deal_id) VALUES
	  ('deal-headset'),('deal-switch'),('deal-airfryer')`)

	return tx.Commit()
}

// seedUsers ensures one account per role exists (idempotent).
func seedUsers(db *sqlx.DB) error {
	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()
	if err := insertSeedUsers(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSeedUsers(tx *sqlx.Tx) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), 12)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-mina", "mina@dealdrop.test", "Mina", "MEMBER", "Passw0rd!"),
		mk("u-omar", "omar@dealdrop.test", "Omar", "MEMBER", "Passw0rd!"),
		mk("u-mod", "mod@dealdrop.test", "Morgan", "MODERATOR", "Passw0rd!"),
		mk("u-admin", "admin@dealdrop.test", "Ada", "ADMIN", "Passw0rd!"),
		mk("u-root", "root@dealdrop.test", "Root", "ROOT_ADMIN", "Passw0rd!"),
	}

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}
	return nil
}
