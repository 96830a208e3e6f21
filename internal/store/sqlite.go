package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/memstore/internal/model"
)

// timeFormat is fixed-width so that stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "create db dir", goerr.V("dir", dir))
	}

	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)" +
		"&_pragma=synchronous(full)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "open db", goerr.V("path", dbPath))
	}

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "migrate", goerr.V("path", dbPath))
	}

	return s, nil
}

func (s *SQLiteStore) NewID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		key        TEXT NOT NULL UNIQUE,
		content    TEXT NOT NULL,
		metadata   TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);

	CREATE TABLE IF NOT EXISTS embeddings (
		key    TEXT NOT NULL REFERENCES records(key),
		seq    INTEGER NOT NULL,
		model  TEXT NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (key, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, p PutParams) error {
	rec := p.Record

	var metaJSON *string
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return goerr.Wrap(model.ErrInvalidInput, "encode metadata", goerr.V("key", rec.Key), goerr.V("cause", err.Error()))
		}
		m := string(b)
		metaJSON = &m
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(model.ErrStorage, "begin tx", goerr.V("cause", err.Error()))
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM records WHERE key = ?`, rec.Key).Scan(&exists)
	if err == nil {
		return goerr.Wrap(model.ErrDuplicateKey, "insert record", goerr.V("key", rec.Key))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return goerr.Wrap(model.ErrStorage, "check key", goerr.V("key", rec.Key), goerr.V("cause", err.Error()))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (key, content, metadata, created_at) VALUES (?, ?, ?, ?)`,
		rec.Key, rec.Content, metaJSON, rec.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return goerr.Wrap(model.ErrDuplicateKey, "insert record", goerr.V("key", rec.Key))
		}
		return goerr.Wrap(model.ErrStorage, "insert record", goerr.V("key", rec.Key), goerr.V("cause", err.Error()))
	}

	for i, v := range p.Vectors {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO embeddings (key, seq, model, vector) VALUES (?, ?, ?, ?)`,
			rec.Key, i, p.Model, encodeVector(v))
		if err != nil {
			return goerr.Wrap(model.ErrStorage, "insert embedding", goerr.V("key", rec.Key), goerr.V("cause", err.Error()))
		}
	}

	if p.Apply != nil {
		if err := p.Apply(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(model.ErrStorage, "commit", goerr.V("key", rec.Key), goerr.V("cause", err.Error()))
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, content, metadata, created_at FROM records WHERE key = ?`, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "get record", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(model.ErrStorage, "get record", goerr.V("key", key), goerr.V("cause", err.Error()))
	}
	return &rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, content, metadata, created_at FROM records ORDER BY seq`)
	if err != nil {
		return nil, goerr.Wrap(model.ErrStorage, "list records", goerr.V("cause", err.Error()))
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, goerr.Wrap(model.ErrStorage, "scan record", goerr.V("cause", err.Error()))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(model.ErrStorage, "list records", goerr.V("cause", err.Error()))
	}
	return records, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, fn func(Entry) error) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, model, vector FROM embeddings ORDER BY key, seq`)
	if err != nil {
		return goerr.Wrap(model.ErrStorage, "load embeddings", goerr.V("cause", err.Error()))
	}
	type stored struct {
		model   string
		vectors [][]float32
	}
	vectors := map[string]*stored{}
	for rows.Next() {
		var key, m string
		var blob []byte
		if err := rows.Scan(&key, &m, &blob); err != nil {
			rows.Close()
			return goerr.Wrap(model.ErrStorage, "scan embedding", goerr.V("cause", err.Error()))
		}
		st, ok := vectors[key]
		if !ok {
			st = &stored{model: m}
			vectors[key] = st
		}
		st.vectors = append(st.vectors, decodeVector(blob))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return goerr.Wrap(model.ErrStorage, "load embeddings", goerr.V("cause", err.Error()))
	}

	for _, rec := range records {
		e := Entry{Record: rec}
		if st, ok := vectors[rec.Key]; ok {
			e.Vectors = st.vectors
			e.Model = st.model
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceVectors swaps the stored embeddings of key, used when the embedder changes.
func (s *SQLiteStore) ReplaceVectors(ctx context.Context, key, modelName string, vectors [][]float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(model.ErrStorage, "begin tx", goerr.V("cause", err.Error()))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE key = ?`, key); err != nil {
		return goerr.Wrap(model.ErrStorage, "delete embeddings", goerr.V("key", key), goerr.V("cause", err.Error()))
	}
	for i, v := range vectors {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (key, seq, model, vector) VALUES (?, ?, ?, ?)`,
			key, i, modelName, encodeVector(v))
		if err != nil {
			return goerr.Wrap(model.ErrStorage, "insert embedding", goerr.V("key", key), goerr.V("cause", err.Error()))
		}
	}
	if err := tx.Commit(); err != nil {
		return goerr.Wrap(model.ErrStorage, "commit", goerr.V("key", key), goerr.V("cause", err.Error()))
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (model.Record, error) {
	var rec model.Record
	var meta sql.NullString
	var createdAt string

	if err := row.Scan(&rec.Key, &rec.Content, &meta, &createdAt); err != nil {
		return rec, err
	}

	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return rec, err
	}
	rec.CreatedAt = t.UTC()

	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
