package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/migration"
	"github.com/julianstephens/progressquest/internal/storage"
	"github.com/julianstephens/progressquest/migrations"
)

// Store is the durable local backend.
type Store struct {
	path string
	db   *sql.DB
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Name() string { return "sqlite" }

// Open creates the database file if needed and applies pending migrations.
func (s *Store) Open() error {
	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: transactions serialize and readers never see a half-applied replace-all.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("failed to configure database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.runMigrations(); err != nil {
		s.db = nil
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Migrations returns a runner over the embedded SQLite migrations for the open database.
func (s *Store) Migrations() (*migration.Runner, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS), nil
}

func (s *Store) runMigrations() error {
	runner, err := s.Migrations()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Debug(msg, "backend", "sqlite")
	})
	return err
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying connection, or nil before Open.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
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

	var (
		r       storage.Record
		updated string
	)
	err = q.QueryRow(`
		SELECT collection, key, user_id, type, seq, value, updated_at
		FROM records WHERE collection = ? AND key = ?`, collection, key,
	).Scan(&r.Collection, &r.Key, &r.UserID, &r.Type, &r.Seq, &r.Value, &updated)
	if err == sql.ErrNoRows {
		return storage.Record{}, false, nil
	}
	if err != nil {
		return storage.Record{}, false, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
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
		var (
			r       storage.Record
			updated string
		)
		if err := rows.Scan(&r.Collection, &r.Key, &r.UserID, &r.Type, &r.Seq, &r.Value, &updated); err != nil {
			return nil, fmt.Errorf("failed to read %s record: %w", collection, err)
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Delete(collection, key string) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := q.Exec("DELETE FROM records WHERE collection = ? AND key = ?", collection, key); err != nil {
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
	if _, err := w.tx.Exec("DELETE FROM records WHERE collection = ? AND key = ?", collection, key); err != nil {
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
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET
			user_id = excluded.user_id,
			type = excluded.type,
			seq = excluded.seq,
			value = excluded.value,
			updated_at = excluded.updated_at`,
		r.Collection, r.Key, r.UserID, r.Type, r.Seq, r.Value, r.UpdatedAt.Format(time.RFC3339Nano))
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
	conds := []string{"collection = ?"}
	args := []any{collection}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	return strings.Join(conds, " AND "), args
}
