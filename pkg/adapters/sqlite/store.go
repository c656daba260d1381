// Package sqlite stores fundraisers and donations in SQLite and serves
// cause search over them.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/ranking"
)

const schema = `
CREATE TABLE IF NOT EXISTS fundraisers (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL,
	display_name      TEXT NOT NULL DEFAULT '',
	short_description TEXT NOT NULL DEFAULT '',
	long_description  TEXT NOT NULL DEFAULT '',
	website_url       TEXT NOT NULL DEFAULT '',
	image_url         TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	country           TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	trust_score       REAL NOT NULL DEFAULT 0,
	goal_amount       REAL NOT NULL DEFAULT 0,
	amount_raised     REAL NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'active',
	preferred_chain   TEXT NOT NULL DEFAULT '',
	preferred_token   TEXT NOT NULL DEFAULT '',
	wallet_address    TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS donations (
	id            TEXT PRIMARY KEY,
	fundraiser_id TEXT NOT NULL REFERENCES fundraisers(id),
	amount_zec    REAL NOT NULL,
	amount        REAL NOT NULL,
	status        TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_donations_fundraiser ON donations(fundraiser_id);
`

const causeColumns = `id, user_id, title, display_name, short_description, long_description,
	website_url, image_url, category, tags, country, city, trust_score, goal_amount,
	amount_raised, status, preferred_chain, preferred_token, wallet_address, created_at`

// Store implements ports.Persistence and ports.Search.
type Store struct {
	db     *sql.DB
	ranker *ranking.Ranker
}

// Open connects to dsn (a file path or ":memory:") and creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, ranker: ranking.New()}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutCause inserts or replaces a fundraiser.
func (s *Store) PutCause(ctx context.Context, c domain.Cause) error {
	if err := c.Validate(); err != nil {
		return err
	}
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if c.Status == "" {
		c.Status = "active"
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO fundraisers (`+causeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.DisplayName, c.ShortDescription, c.LongDescription,
		c.WebsiteURL, c.ImageURL, c.Category, string(tags), c.Country, c.City, c.TrustScore, c.GoalAmount,
		c.AmountRaised, c.Status, c.PreferredChain, c.PreferredToken, c.WalletAddress,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put cause %s: %w", c.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCause(row scanner) (domain.Cause, error) {
	var c domain.Cause
	var tags, created string
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.DisplayName, &c.ShortDescription, &c.LongDescription,
		&c.WebsiteURL, &c.ImageURL, &c.Category, &tags, &c.Country, &c.City, &c.TrustScore, &c.GoalAmount,
		&c.AmountRaised, &c.Status, &c.PreferredChain, &c.PreferredToken, &c.WalletAddress, &created)
	if err != nil {
		return c, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return c, fmt.Errorf("decode tags of %s: %w", c.ID, err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		c.CreatedAt = t
	}
	return c, nil
}

// GetCause returns the fundraiser with the given id.
func (s *Store) GetCause(ctx context.Context, id string) (*domain.Cause, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+causeColumns+` FROM fundraisers WHERE id = ?`, id)
	c, err := scanCause(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCauseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cause %s: %w", id, err)
	}
	return &c, nil
}

// RecordDonation stores a confirmed donation and adds amountQuote to the
// fundraiser's amount raised, atomically.
func (s *Store) RecordDonation(ctx context.Context, fundraiserID string, amountNative, amountQuote float64) (*domain.Donation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE fundraisers SET amount_raised = amount_raised + ? WHERE id = ?`, amountQuote, fundraiserID)
	if err != nil {
		return nil, fmt.Errorf("update amount raised: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrCauseNotFound
	}

	d := domain.Donation{
		ID:           uuid.NewString(),
		FundraiserID: fundraiserID,
		AmountNative: amountNative,
		AmountQuote:  amountQuote,
		Status:       domain.DonationConfirmed,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO donations (id, fundraiser_id, amount_zec, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.FundraiserID, d.AmountNative, d.AmountQuote, d.Status, d.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert donation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &d, nil
}

// Donations lists the donations recorded for a fundraiser, oldest first.
func (s *Store) Donations(ctx context.Context, fundraiserID string) ([]domain.Donation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, fundraiser_id, amount_zec, amount, status, created_at
		FROM donations WHERE fundraiser_id = ? ORDER BY created_at`, fundraiserID)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var out []domain.Donation
	for rows.Next() {
		var d domain.Donation
		var created string
		if err := rows.Scan(&d.ID, &d.FundraiserID, &d.AmountNative, &d.AmountQuote, &d.Status, &created); err != nil {
			return nil, err
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SearchCauses ranks the active fundraisers against the query.
func (s *Store) SearchCauses(ctx context.Context, query domain.SearchQuery, interests []string) ([]domain.Cause, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+causeColumns+` FROM fundraisers WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("search causes: %w", err)
	}
	defer rows.Close()

	var all []domain.Cause
	for rows.Next() {
		c, err := scanCause(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.ranker.Rank(all, query, interests), nil
}
