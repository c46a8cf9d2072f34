package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"ksl-notify/models"
	"ksl-notify/utils"
)

// PostgresWriter archives reported listings to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter. The initial ping
// is retried since the database may still be coming up at daemon start.
func NewPostgresWriter(dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
	}
	if err := retry.Do("postgres-connect", db.Ping); err != nil {
		_ = db.Close()
		return nil, err
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS reported_listings (
			id          SERIAL PRIMARY KEY,
			query       TEXT        NOT NULL,
			link        TEXT        NOT NULL,
			title       TEXT        NOT NULL DEFAULT '',
			price       INTEGER     NOT NULL DEFAULT 0,
			age         TEXT        NOT NULL DEFAULT '',
			city        TEXT        NOT NULL DEFAULT '',
			state       TEXT        NOT NULL DEFAULT '',
			description TEXT        NOT NULL DEFAULT '',
			reported_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (query, link)
		);

		CREATE INDEX IF NOT EXISTS idx_reported_listings_query ON reported_listings(query);
		CREATE INDEX IF NOT EXISTS idx_reported_listings_time  ON reported_listings(reported_at);
	`)
	return err
}

// Archive batch-inserts the reported listings. Re-reporting the same link
// for a query (e.g. after a process restart) is not an error.
func (pw *PostgresWriter) Archive(query string, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(listings))
	valueArgs := make([]interface{}, 0, len(listings)*8)

	for idx, l := range listings {
		base := idx * 8
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		valueArgs = append(valueArgs,
			query, l.Link, l.Title, l.Price, l.Age, l.City, l.State, l.Description)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO reported_listings (query, link, title, price, age, city, state, description)
		VALUES %s
		ON CONFLICT (query, link) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := pw.db.Exec(stmt, valueArgs...); err != nil {
		return fmt.Errorf("postgres: archive: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
