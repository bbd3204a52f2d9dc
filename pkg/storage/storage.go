package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// Atomicity selects how BatchSave commits a batch larger than one chunk.
type Atomicity string

const (
	// AtomicityBestEffort commits each chunk separately; a failing chunk leaves
	// earlier chunks committed.
	AtomicityBestEffort Atomicity = "best_effort"
	// AtomicityAllOrNothing commits the whole batch in a single transaction.
	AtomicityAllOrNothing Atomicity = "all_or_nothing"
)

// ParseAtomicity accepts the config spelling, defaulting to best effort.
func ParseAtomicity(s string) (Atomicity, error) {
	switch Atomicity(strings.ToLower(strings.TrimSpace(s))) {
	case "", AtomicityBestEffort:
		return AtomicityBestEffort, nil
	case AtomicityAllOrNothing:
		return AtomicityAllOrNothing, nil
	}
	return "", errs.Newf(errs.CodeConfiguration, "unknown batch atomicity %q", s)
}

const (
	DefaultChunkSize  = 100
	DefaultMaxRetries = 3
)

// Option configures a DB.
type Option func(*DB)

func WithChunkSize(n int) Option {
	return func(d *DB) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

func WithAtomicity(a Atomicity) Option {
	return func(d *DB) { d.atomicity = a }
}

// WithRetries sets how many times a transaction hitting SQLITE_BUSY or
// SQLITE_LOCKED is retried, and the base delay between attempts.
func WithRetries(n int, delay time.Duration) Option {
	return func(d *DB) {
		if n >= 0 {
			d.maxRetries = n
		}
		d.retryDelay = delay
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *DB) { d.now = now }
}

type DB struct {
	sql        *sql.DB
	chunkSize  int
	atomicity  Atomicity
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

func Open(path string, opts ...Option) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	d := &DB{
		sql:        db,
		chunkSize:  DefaultChunkSize,
		atomicity:  AtomicityBestEffort,
		maxRetries: DefaultMaxRetries,
		retryDelay: 50 * time.Millisecond,
		now:        model.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// ChunkSize reports the configured BatchSave chunk size.
func (d *DB) ChunkSize() int { return d.chunkSize }

// withTx runs fn inside a transaction, retrying the whole transaction when the
// store reports it is busy or locked.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = d.runTx(ctx, fn)
		if err == nil || !isBusy(err) || attempt >= d.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.retryDelay * time.Duration(attempt+1)):
		}
	}
	if err != nil && isBusy(err) {
		return errs.New(errs.CodeStoreBusy, "database busy", err)
	}
	return err
}

func (d *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

func isBusy(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func isConstraint(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code&0xff == sqlite3.SQLITE_CONSTRAINT
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// toEpoch stores the zero time as 0 so it decodes back to the zero time.
func toEpoch(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromEpoch(s int64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(s, 0).UTC()
}
