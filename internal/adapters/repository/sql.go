package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// mysqlDuplicateEntry is the server error number for a unique key clash.
const mysqlDuplicateEntry = 1062

const createSubscribersTable = `
CREATE TABLE IF NOT EXISTS subscribers (
	id         BIGINT AUTO_INCREMENT PRIMARY KEY,
	public_id  CHAR(36)     NOT NULL,
	first_name VARCHAR(100) NOT NULL,
	last_name  VARCHAR(100) NOT NULL,
	email      VARCHAR(255) NOT NULL,
	county     VARCHAR(100) NOT NULL,
	state      VARCHAR(100) NOT NULL,
	created_at DATETIME(6)  NOT NULL,
	UNIQUE KEY uq_subscribers_email (email),
	UNIQUE KEY uq_subscribers_public_id (public_id)
)`

const selectSubscriber = `SELECT id, public_id, first_name, last_name, email, county, state, created_at FROM subscribers`

// SQLStore keeps subscribers in MySQL.
type SQLStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

// OpenSQLStore connects to dsn, verifies the connection and creates the
// subscribers table when missing. Times are always parsed as time.Time.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSubscribersTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create subscribers table: %w", err)
	}
	return &SQLStore{db: db, clock: clockwork.NewRealClock()}, nil
}

func (s *SQLStore) Create(ctx context.Context, sub Subscriber) (Subscriber, error) {
	if sub.PublicID == "" {
		sub.PublicID = uuid.NewString()
	}
	sub.CreatedAt = s.clock.Now().UTC().Truncate(time.Microsecond)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (public_id, first_name, last_name, email, county, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.PublicID, sub.FirstName, sub.LastName, sub.Email, sub.County, sub.State, sub.CreatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return Subscriber{}, ErrDuplicateEmail
		}
		return Subscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}
	if sub.ID, err = res.LastInsertId(); err != nil {
		return Subscriber{}, fmt.Errorf("subscriber id: %w", err)
	}
	return sub, nil
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (Subscriber, error) {
	row := s.db.QueryRowContext(ctx, selectSubscriber+` WHERE email = ?`, email)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscriber{}, ErrNotFound
	}
	if err != nil {
		return Subscriber{}, fmt.Errorf("get subscriber: %w", err)
	}
	return sub, nil
}

func (s *SQLStore) DeleteByEmail(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, selectSubscriber+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Count returns -1 when the query fails.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n); err != nil {
		return -1
	}
	return n
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(r scanner) (Subscriber, error) {
	var sub Subscriber
	err := r.Scan(&sub.ID, &sub.PublicID, &sub.FirstName, &sub.LastName,
		&sub.Email, &sub.County, &sub.State, &sub.CreatedAt)
	return sub, err
}
