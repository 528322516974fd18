package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/flashbots/quorumcompute/protocol"
	_ "github.com/lib/pq"
)

// PostgresInbox implements Inbox with PostgreSQL persistence.
// Mail survives host restarts; engine state does not.
type PostgresInbox struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresInbox connects to PostgreSQL and prepares the schema.
func NewPostgresInbox(config *PostgresConfig) (*PostgresInbox, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	inbox, err := NewPostgresInboxFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return inbox, nil
}

// NewPostgresInboxFromDB wraps an open database and runs migrations.
func NewPostgresInboxFromDB(db *sql.DB) (*PostgresInbox, error) {
	inbox := &PostgresInbox{db: db}
	if err := inbox.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return inbox, nil
}

func (s *PostgresInbox) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inbox_mail (
		id BIGSERIAL PRIMARY KEY,
		route VARCHAR(128) NOT NULL,
		body JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_inbox_mail_route ON inbox_mail(route, id);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Post persists signed mail under its route.
func (s *PostgresInbox) Post(ctx context.Context, mail *SignedMail) error {
	route, err := mailRoute(mail)
	if err != nil {
		return err
	}

	body, err := protocol.SerializeMessage(mail)
	if err != nil {
		return fmt.Errorf("serializing mail: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "INSERT INTO inbox_mail (route, body) VALUES ($1, $2)", route, body)
	return err
}

// Collect deletes and returns the mail stored under route in posting order.
func (s *PostgresInbox) Collect(ctx context.Context, route string) ([]*SignedMail, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "DELETE FROM inbox_mail WHERE route = $1 RETURNING id, body", route)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		id   int64
		mail *SignedMail
	}
	var collected []row
	for rows.Next() {
		var (
			id   int64
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var mail SignedMail
		if err := json.Unmarshal(body, &mail); err != nil {
			return nil, fmt.Errorf("decoding mail %d: %w", id, err)
		}
		collected = append(collected, row{id: id, mail: &mail})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING gives no ordering guarantee.
	sort.Slice(collected, func(i, j int) bool { return collected[i].id < collected[j].id })

	out := make([]*SignedMail, len(collected))
	for i, r := range collected {
		out[i] = r.mail
	}
	return out, nil
}

// Close closes the database connection.
func (s *PostgresInbox) Close() error {
	return s.db.Close()
}
