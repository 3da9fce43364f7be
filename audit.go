package corrstream

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// AuditStore keeps a revision history of every insight the pipeline has
// committed, one row per commit, so severity changes and re-ingestions
// can be reconstructed after the fact. Payloads are snappy-compressed
// JSON, optionally encrypted at rest.
type AuditStore struct {
	db        *sql.DB
	encryptor *Encryptor
	mu        sync.Mutex
	closed    bool

	insertStmt *sql.Stmt
	selectStmt *sql.Stmt
}

// InsightRevision is one historical snapshot of an insight.
type InsightRevision struct {
	Revision   int64
	RecordedAt time.Time
	Insight    Insight
}

// NewAuditStore opens (or creates) the audit database at cfg.Path.
func NewAuditStore(cfg AuditConfig) (*AuditStore, error) {
	if cfg.Path == "" {
		cfg.Path = "corrstream_audit.db"
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	store := &AuditStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	if cfg.KeyPassword != "" {
		enc, err := store.loadEncryptor(cfg.KeyPassword)
		if err != nil {
			db.Close()
			return nil, err
		}
		store.encryptor = enc
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare audit statements: %w", err)
	}

	return store, nil
}

func (a *AuditStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS insight_revisions (
			revision INTEGER PRIMARY KEY AUTOINCREMENT,
			insight_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			severity TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_revisions_insight ON insight_revisions(insight_id, revision);

		CREATE TABLE IF NOT EXISTS audit_meta (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);
	`
	_, err := a.db.Exec(schema)
	return err
}

// loadEncryptor reuses the persisted salt so payloads written by earlier
// runs stay readable; a fresh database gets a fresh salt.
func (a *AuditStore) loadEncryptor(password string) (*Encryptor, error) {
	var salt []byte
	err := a.db.QueryRow(`SELECT value FROM audit_meta WHERE key = 'encryption_salt'`).Scan(&salt)
	switch {
	case err == sql.ErrNoRows:
		enc, err := NewEncryptor(password)
		if err != nil {
			return nil, err
		}
		if _, err := a.db.Exec(`INSERT INTO audit_meta (key, value) VALUES ('encryption_salt', ?)`, enc.Salt()); err != nil {
			return nil, err
		}
		return enc, nil
	case err != nil:
		return nil, err
	default:
		return NewEncryptorWithSalt(password, salt)
	}
}

func (a *AuditStore) prepareStatements() error {
	var err error
	a.insertStmt, err = a.db.Prepare(`
		INSERT INTO insight_revisions (insight_id, kind, severity, recorded_at, payload)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	a.selectStmt, err = a.db.Prepare(`
		SELECT revision, recorded_at, payload FROM insight_revisions
		WHERE insight_id = ? ORDER BY revision`)
	return err
}

func (a *AuditStore) encodePayload(in Insight) ([]byte, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	payload := snappy.Encode(nil, raw)
	if a.encryptor != nil {
		return a.encryptor.Encrypt(payload)
	}
	return payload, nil
}

func (a *AuditStore) decodePayload(payload []byte) (Insight, error) {
	var in Insight
	if a.encryptor != nil {
		dec, err := a.encryptor.Decrypt(payload)
		if err != nil {
			return in, err
		}
		payload = dec
	}
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return in, err
	}
	err = json.Unmarshal(raw, &in)
	return in, err
}

// Record appends one revision per insight in the committed batch.
func (a *AuditStore) Record(batch []Insight, recordedAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := tx.Stmt(a.insertStmt)
	for _, in := range batch {
		payload, err := a.encodePayload(in)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(in.ID, in.KindName, in.SeverityName, recordedAt.UnixMilli(), payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// History returns all recorded revisions for one insight, oldest first.
func (a *AuditStore) History(insightID string) ([]InsightRevision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	rows, err := a.selectStmt.Query(insightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []InsightRevision
	for rows.Next() {
		var rev InsightRevision
		var recordedAt int64
		var payload []byte
		if err := rows.Scan(&rev.Revision, &recordedAt, &payload); err != nil {
			return nil, err
		}
		rev.RecordedAt = time.UnixMilli(recordedAt).UTC()
		rev.Insight, err = a.decodePayload(payload)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}

// RevisionCount returns the total number of stored revisions.
func (a *AuditStore) RevisionCount() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrClosed
	}

	var count int64
	err := a.db.QueryRow(`SELECT COUNT(*) FROM insight_revisions`).Scan(&count)
	return count, err
}

// Close closes the audit database.
func (a *AuditStore) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	if a.insertStmt != nil {
		a.insertStmt.Close()
	}
	if a.selectStmt != nil {
		a.selectStmt.Close()
	}
	return a.db.Close()
}
