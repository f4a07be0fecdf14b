package repository

import (
    "bytes"
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"
)

// MySQLStore implements Store on the kv_records table created by
// database.Migrate.  Expired rows are invisible to reads and are replaced
// by PutIfAbsent; nothing sweeps them.
type MySQLStore struct {
    db      *sql.DB
    version int
    now     func() time.Time
}

// NewMySQLStore returns a Store bound to db.  version is stamped into
// counters created by AdjustCounter.
func NewMySQLStore(db *sql.DB, version int) *MySQLStore {
    return &MySQLStore{db: db, version: version, now: time.Now}
}

// expiry converts a ttl into the expires_at column value (NULL for none).
func (s *MySQLStore) expiry(ttl time.Duration) interface{} {
    if ttl <= 0 {
        return nil
    }
    return s.now().UTC().Add(ttl)
}

func (s *MySQLStore) Get(ctx context.Context, key string) ([]byte, error) {
    const q = `SELECT v FROM kv_records WHERE k = ? AND (expires_at IS NULL OR expires_at > ?)`
    var v []byte
    err := s.db.QueryRowContext(ctx, q, key, s.now().UTC()).Scan(&v)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("mysql get %s: %w", key, err)
    }
    return v, nil
}

func (s *MySQLStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
    const q = `INSERT INTO kv_records (k, v, expires_at) VALUES (?, ?, ?)
               ON DUPLICATE KEY UPDATE v = VALUES(v), expires_at = VALUES(expires_at)`
    if _, err := s.db.ExecContext(ctx, q, key, value, s.expiry(ttl)); err != nil {
        return fmt.Errorf("mysql put %s: %w", key, err)
    }
    return nil
}

// PutIfAbsent first drops an expired row under key, then relies on the
// primary key so that exactly one concurrent INSERT IGNORE wins.
func (s *MySQLStore) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error {
    const purge = `DELETE FROM kv_records WHERE k = ? AND expires_at IS NOT NULL AND expires_at <= ?`
    if _, err := s.db.ExecContext(ctx, purge, key, s.now().UTC()); err != nil {
        return fmt.Errorf("mysql purge %s: %w", key, err)
    }
    const ins = `INSERT IGNORE INTO kv_records (k, v, expires_at) VALUES (?, ?, ?)`
    res, err := s.db.ExecContext(ctx, ins, key, value, s.expiry(ttl))
    if err != nil {
        return fmt.Errorf("mysql insert %s: %w", key, err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return fmt.Errorf("mysql insert %s: %w", key, err)
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}

func (s *MySQLStore) Delete(ctx context.Context, key string) error {
    if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_records WHERE k = ?`, key); err != nil {
        return fmt.Errorf("mysql delete %s: %w", key, err)
    }
    return nil
}

func (s *MySQLStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
    const q = `SELECT k FROM kv_records
               WHERE k LIKE ? ESCAPE '!' AND (expires_at IS NULL OR expires_at > ?)
               ORDER BY k`
    rows, err := s.db.QueryContext(ctx, q, likeEscape(prefix)+"%", s.now().UTC())
    if err != nil {
        return nil, fmt.Errorf("mysql list %s: %w", prefix, err)
    }
    defer rows.Close()
    var keys []string
    for rows.Next() {
        var k string
        if err := rows.Scan(&k); err != nil {
            return nil, err
        }
        keys = append(keys, k)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return keys, nil
}

// counterRow is the JSON shape of a counter inside kv_records.v.
type counterRow struct {
    Version  int `json:"v"`
    Capacity int `json:"capacity"`
    Booked   int `json:"booked"`
}

// AdjustCounter locks the counter row with SELECT ... FOR UPDATE so the
// ceiling check and the write happen under one row lock.
func (s *MySQLStore) AdjustCounter(ctx context.Context, key string, delta, capacity int) (res CounterResult, err error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return CounterResult{}, fmt.Errorf("mysql adjust %s: begin: %w", key, err)
    }
    defer func() {
        if err != nil || !res.Applied {
            _ = tx.Rollback()
        }
    }()

    c := counterRow{Version: s.version, Capacity: capacity}
    var raw []byte
    err = tx.QueryRowContext(ctx, `SELECT v FROM kv_records WHERE k = ? FOR UPDATE`, key).Scan(&raw)
    switch {
    case errors.Is(err, sql.ErrNoRows):
        err = nil
    case err != nil:
        return CounterResult{}, fmt.Errorf("mysql adjust %s: select: %w", key, err)
    default:
        if err = json.Unmarshal(raw, &c); err != nil {
            return CounterResult{}, fmt.Errorf("mysql adjust %s: decode: %w", key, err)
        }
    }

    if delta > 0 && c.Booked+delta > c.Capacity {
        return CounterResult{Applied: false, Booked: c.Booked, Capacity: c.Capacity}, nil
    }
    c.Booked += delta
    if c.Booked < 0 {
        c.Booked = 0
    }
    c.Version = s.version

    out, err := json.Marshal(c)
    if err != nil {
        return CounterResult{}, err
    }
    const up = `INSERT INTO kv_records (k, v, expires_at) VALUES (?, ?, NULL)
                ON DUPLICATE KEY UPDATE v = VALUES(v), expires_at = NULL`
    if _, err = tx.ExecContext(ctx, up, key, out); err != nil {
        return CounterResult{}, fmt.Errorf("mysql adjust %s: write: %w", key, err)
    }
    if err = tx.Commit(); err != nil {
        return CounterResult{}, fmt.Errorf("mysql adjust %s: commit: %w", key, err)
    }
    return CounterResult{Applied: true, Booked: c.Booked, Capacity: c.Capacity}, nil
}

// CompareAndSwap locks the row with SELECT ... FOR UPDATE and compares the
// stored document with old before writing.
func (s *MySQLStore) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (err error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return fmt.Errorf("mysql swap %s: begin: %w", key, err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const sel = `SELECT v FROM kv_records WHERE k = ? AND (expires_at IS NULL OR expires_at > ?) FOR UPDATE`
    var cur []byte
    err = tx.QueryRowContext(ctx, sel, key, s.now().UTC()).Scan(&cur)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrConflict
    }
    if err != nil {
        return fmt.Errorf("mysql swap %s: select: %w", key, err)
    }
    if !bytes.Equal(cur, old) {
        return ErrConflict
    }

    if len(next) == 0 {
        _, err = tx.ExecContext(ctx, `DELETE FROM kv_records WHERE k = ?`, key)
    } else {
        _, err = tx.ExecContext(ctx, `UPDATE kv_records SET v = ?, expires_at = ? WHERE k = ?`, next, s.expiry(ttl), key)
    }
    if err != nil {
        return fmt.Errorf("mysql swap %s: write: %w", key, err)
    }
    if err = tx.Commit(); err != nil {
        return fmt.Errorf("mysql swap %s: commit: %w", key, err)
    }
    committed = true
    return nil
}

// likeEscape quotes LIKE wildcards with '!' as the escape character.
func likeEscape(s string) string {
    r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
    return r.Replace(s)
}
