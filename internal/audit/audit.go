// Package audit journals compliance decisions and upstream fetches to SQLite.
// The journal makes every policy answer auditable after the fact; it is
// strictly best-effort: journal failures are logged and never propagate into
// the resolve path.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Record is one journal row.
type Record struct {
	Kind     string // "policy_decision" | "fetch"
	SourceID string
	Subject  string
	Purpose  string
	Outcome  string // "allowed"/"denied" or "ok"/"error"/"empty"
	AtMs     int64
}

// Journal is a single-goroutine SQLite writer with transaction batching.
type Journal struct {
	db *sql.DB

	mu     sync.Mutex
	queue  []Record
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// Open creates the journal database (WAL mode) and starts the writer loop.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("audit open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit schema: %w", err)
	}

	j := &Journal{
		db:   db,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go j.run()

	log.Printf("[audit] journal opened at %s", dbPath)
	return j, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			kind      TEXT    NOT NULL,
			source_id TEXT    NOT NULL,
			subject   TEXT,
			purpose   TEXT,
			outcome   TEXT    NOT NULL,
			at_ms     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journal_source ON journal (source_id, at_ms);
	`)
	return err
}

// PolicyDecision journals one isAllowed answer. Non-blocking.
func (j *Journal) PolicyDecision(sourceID, purpose string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	j.enqueue(Record{
		Kind: "policy_decision", SourceID: sourceID, Purpose: purpose,
		Outcome: outcome, AtMs: time.Now().UnixMilli(),
	})
}

// Fetch journals one upstream fetch attempt. Non-blocking.
func (j *Journal) Fetch(sourceID, subject, outcome string) {
	j.enqueue(Record{
		Kind: "fetch", SourceID: sourceID, Subject: subject,
		Outcome: outcome, AtMs: time.Now().UnixMilli(),
	})
}

func (j *Journal) enqueue(r Record) {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.queue = append(j.queue, r)
	j.mu.Unlock()

	select {
	case j.wake <- struct{}{}:
	default:
	}
}

// run drains the queue in batched transactions. Flushes every batchSize rows
// or every flushDelay, whichever comes first.
func (j *Journal) run() {
	defer close(j.done)
	timer := time.NewTicker(defaultFlushDelay)
	defer timer.Stop()

	for {
		select {
		case <-j.wake:
			if j.isClosed() {
				j.flush()
				return
			}
			if j.pendingLen() >= defaultBatchSize {
				j.flush()
			}
		case <-timer.C:
			j.flush()
			if j.isClosed() {
				return
			}
		}
	}
}

func (j *Journal) pendingLen() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

func (j *Journal) isClosed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

// flush commits all queued rows in one transaction.
func (j *Journal) flush() {
	j.mu.Lock()
	batch := j.queue
	j.queue = nil
	j.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	tx, err := j.db.Begin()
	if err != nil {
		log.Printf("[audit] begin: %v", err)
		return
	}
	stmt, err := tx.Prepare(`INSERT INTO journal (kind, source_id, subject, purpose, outcome, at_ms) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("[audit] prepare: %v", err)
		tx.Rollback()
		return
	}
	for _, r := range batch {
		if _, err := stmt.Exec(r.Kind, r.SourceID, r.Subject, r.Purpose, r.Outcome, r.AtMs); err != nil {
			log.Printf("[audit] insert: %v", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		log.Printf("[audit] commit: %v", err)
	}
}

// Recent returns the newest n journal rows, newest first.
func (j *Journal) Recent(n int) ([]Record, error) {
	rows, err := j.db.Query(`SELECT kind, source_id, COALESCE(subject, ''), COALESCE(purpose, ''), outcome, at_ms
		FROM journal ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Kind, &r.SourceID, &r.Subject, &r.Purpose, &r.Outcome, &r.AtMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close flushes pending rows and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()

	select {
	case j.wake <- struct{}{}:
	default:
	}
	select {
	case <-j.done:
	case <-time.After(2 * time.Second):
	}
	j.flush()
	return j.db.Close()
}
