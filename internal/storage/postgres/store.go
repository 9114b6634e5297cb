package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/migration"
	"github.com/julianstephens/progressquest/internal/storage"
	"github.com/julianstephens/progressquest/migrations"
)

// Store is a durable backend on a PostgreSQL server, used when the store location is a
// connection string.
type Store struct {
	connStr string
	db      *sql.DB
}

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

func New(connStr string) *Store {
	s := &Store{connStr: connStr}
	s.ensureSearchPath()
	return s
}

// IsConnString reports whether location names a PostgreSQL server rather than a file.
func IsConnString(location string) bool {
	return strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://")
}

func (s *Store) ensureSearchPath() {
	if IsConnString(s.connStr) {
		u, err := url.Parse(s.connStr)
		if err != nil {
			logger.Warn("Failed to parse Postgres connection string", "error", err)
			return
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
			s.connStr = u.String()
		}
		return
	}
	if !hasParam(s.connStr, "search_path") {
		s.connStr = strings.TrimSpace(s.connStr) + " search_path=" + constants.AppName
	}
}

// hasParam reports whether a DSN or URL connection string sets key (case-insensitive).
func hasParam(connStr, key string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for k := range u.Query() {
			if strings.EqualFold(k, key) {
				return true
			}
		}
	}
	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], key) {
			return true
		}
	}
	return false
}

// ValidateConnString checks that connStr is a usable PostgreSQL URI or DSN without a password.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if IsConnString(connStr) {
		parsedURL, err := url.Parse(connStr)
		if err != nil {
			return false, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := parsedURL.User.Password(); isSet {
			return false, ErrEmbeddedCredentials
		}
		if parsedURL.Host == "" && parsedURL.User == nil && (parsedURL.Path == "" || parsedURL.Path == "/") {
			return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
		return true, nil
	}

	for _, pair := range strings.Fields(connStr) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 && strings.EqualFold(strings.TrimSpace(parts[0]), "password") {
			return false, ErrEmbeddedCredentials
		}
	}
	return true, nil
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Open() error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasParam(s.connStr, "sslmode") {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(constants.AppName)); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db

	runner, err := s.Migrations()
	if err != nil {
		s.db = nil
		db.Close()
		return err
	}
	if _, err := runner.ApplyMigrations(func(msg string) {
		logger.Debug(msg, "backend", "postgres")
	}); err != nil {
		s.db = nil
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Migrations returns a runner over the embedded PostgreSQL migrations for the open database.
func (s *Store) Migrations() (*migration.Runner, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	return migration.NewRunnerWithDialect(s.db, subFS, migration.DialectPostgres), nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetConfigPath returns a non-sensitive identifier instead of the connection string.
func (s *Store) GetConfigPath() string {
	return "postgresql"
}

type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) conn() (queryer, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.db, nil
}

func (s *Store) Put(r storage.Record) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	return put(q, r)
}

func (s *Store) Get(collection, key string) (storage.Record, bool, error) {
	q, err := s.conn()
	if err != nil {
		return storage.Record{}, false, err
	}

	var r storage.Record
	err = q.QueryRow(`
		SELECT collection, key, user_id, type, seq, value, updated_at
		FROM records WHERE collection = $1 AND key = $2`, collection, key,
	).Scan(&r.Collection, &r.Key, &r.UserID, &r.Type, &r.Seq, &r.Value, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, false, nil
	}
	if err != nil {
		return storage.Record{}, false, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	return r, true, nil
}

func (s *Store) Scan(collection string, f storage.Filter) ([]storage.Record, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}

	where, args := whereClause(collection, f)
	rows, err := q.Query(`
		SELECT collection, key, user_id, type, seq, value, updated_at
		FROM records WHERE `+where+` ORDER BY seq, key`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var r storage.Record
		if err := rows.Scan(&r.Collection, &r.Key, &r.UserID, &r.Type, &r.Seq, &r.Value, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to read %s record: %w", collection, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Delete(collection, key string) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := q.Exec("DELETE FROM records WHERE collection = $1 AND key = $2", collection, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) DeleteWhere(collection string, f storage.Filter) (int, error) {
	q, err := s.conn()
	if err != nil {
		return 0, err
	}
	return deleteWhere(q, collection, f)
}

// Batch runs fn inside one transaction.
func (s *Store) Batch(fn func(w storage.Writer) error) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(txWriter{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txWriter struct {
	tx *sql.Tx
}

func (w txWriter) Put(r storage.Record) error { return put(w.tx, r) }

func (w txWriter) Delete(collection, key string) error {
	if _, err := w.tx.Exec("DELETE FROM records WHERE collection = $1 AND key = $2", collection, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (w txWriter) DeleteWhere(collection string, f storage.Filter) (int, error) {
	return deleteWhere(w.tx, collection, f)
}

func put(q queryer, r storage.Record) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err := q.Exec(`
		INSERT INTO records (collection, key, user_id, type, seq, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (collection, key) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			type = EXCLUDED.type,
			seq = EXCLUDED.seq,
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`,
		r.Collection, r.Key, r.UserID, r.Type, r.Seq, r.Value, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", r.Collection, r.Key, err)
	}
	return nil
}

func deleteWhere(q queryer, collection string, f storage.Filter) (int, error) {
	where, args := whereClause(collection, f)
	res, err := q.Exec("DELETE FROM records WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func whereClause(collection string, f storage.Filter) (string, []any) {
	conds := []string{"collection = $1"}
	args := []any{collection}
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, "user_id = $"+strconv.Itoa(len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, "type = $"+strconv.Itoa(len(args)))
	}
	return strings.Join(conds, " AND "), args
}
