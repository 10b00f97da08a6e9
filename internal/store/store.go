// Package store persists scanned artifacts, the scripts decoded from them and
// the resulting findings in a SQLite database addressed by SHA-256.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RowanDark/scrdec/internal/findings"
	"github.com/RowanDark/scrdec/internal/plugin"
)

// ErrNotFound is returned when an artifact is not stored.
var ErrNotFound = errors.New("artifact not found")

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Artifact describes a stored blob without its contents.
type Artifact struct {
	SHA256    string
	Name      string
	Size      int
	FirstSeen time.Time
}

// Relation links a scanned artifact to a script decoded from it.
type Relation struct {
	Parent   string
	Child    string
	Offset   string
	Language string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		sha256 TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		first_seen TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relations (
		parent_sha256 TEXT NOT NULL,
		child_sha256 TEXT NOT NULL,
		script_offset TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (parent_sha256, child_sha256),
		FOREIGN KEY (parent_sha256) REFERENCES artifacts(sha256),
		FOREIGN KEY (child_sha256) REFERENCES artifacts(sha256)
	);

	CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY,
		plugin TEXT NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		target TEXT,
		byte_offset INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		language TEXT,
		sha256 TEXT,
		evidence TEXT,
		severity TEXT NOT NULL,
		detected_at TIMESTAMP NOT NULL,
		meta TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_findings_sha256 ON findings(sha256);
	CREATE INDEX IF NOT EXISTS idx_relations_child ON relations(child_sha256);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PutArtifact stores data under its digest. Storing the same bytes twice
// keeps the first name and timestamp.
func (s *Store) PutArtifact(ctx context.Context, name string, data []byte) (string, error) {
	return putArtifact(ctx, s.db, name, data, s.now().UTC())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putArtifact(ctx context.Context, db execer, name string, data []byte, now time.Time) (string, error) {
	digest := Digest(data)
	if data == nil {
		data = []byte{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO artifacts (sha256, name, size, data, first_seen)
		VALUES (?, ?, ?, ?, ?)
	`, digest, name, len(data), data, now)
	if err != nil {
		return "", fmt.Errorf("insert artifact %s: %w", digest, err)
	}
	return digest, nil
}

// GetArtifact returns the bytes stored under digest.
func (s *Store) GetArtifact(ctx context.Context, digest string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM artifacts WHERE sha256 = ?", digest).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", digest, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact: %w", err)
	}
	return data, nil
}

// StatArtifact returns artifact metadata without loading its contents.
func (s *Store) StatArtifact(ctx context.Context, digest string) (Artifact, error) {
	a := Artifact{SHA256: digest}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, size, first_seen FROM artifacts WHERE sha256 = ?", digest,
	).Scan(&a.Name, &a.Size, &a.FirstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("%s: %w", digest, ErrNotFound)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("query artifact: %w", err)
	}
	return a, nil
}

// PutResult stores a scanned target, every decoded child and the links
// between them in one transaction. It returns the target digest.
func (s *Store) PutResult(ctx context.Context, res *plugin.Result, data []byte) (string, error) {
	if res == nil {
		return "", errors.New("result is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	parent, err := putArtifact(ctx, tx, res.Target, data, now)
	if err != nil {
		return "", err
	}
	for _, child := range res.Children {
		digest, err := putArtifact(ctx, tx, "", child.Data, now)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relations (parent_sha256, child_sha256, script_offset, language)
			VALUES (?, ?, ?, ?)
		`, parent, digest, child.Relationship["offset"], child.Relationship["language"])
		if err != nil {
			return "", fmt.Errorf("insert relation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return parent, nil
}

// Children returns the scripts decoded from parent.
func (s *Store) Children(ctx context.Context, parent string) ([]Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT parent_sha256, child_sha256, script_offset, language
		FROM relations WHERE parent_sha256 = ?
		ORDER BY script_offset, child_sha256
	`, parent)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.Parent, &r.Child, &r.Offset, &r.Language); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveFinding validates and upserts a finding.
func (s *Store) SaveFinding(ctx context.Context, f findings.Finding) error {
	if f.Version == "" {
		f.Version = findings.SchemaVersion
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid finding: %w", err)
	}
	var meta sql.NullString
	if len(f.Metadata) > 0 {
		raw, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO findings (
			id, plugin, type, message, target, byte_offset, size,
			language, sha256, evidence, severity, detected_at, meta
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Plugin, f.Type, f.Message, f.Target, f.Offset, f.Size,
		f.Language, f.SHA256, f.Evidence, string(f.Severity), f.Timestamp(), meta)
	if err != nil {
		return fmt.Errorf("insert finding %s: %w", f.ID, err)
	}
	return nil
}

// ListFindings returns stored findings ordered by detection time. An empty
// digest lists every finding.
func (s *Store) ListFindings(ctx context.Context, digest string) ([]findings.Finding, error) {
	query := `
		SELECT id, plugin, type, message, target, byte_offset, size,
			language, sha256, evidence, severity, detected_at, meta
		FROM findings`
	var args []any
	if digest != "" {
		query += " WHERE sha256 = ?"
		args = append(args, digest)
	}
	query += " ORDER BY detected_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []findings.Finding
	for rows.Next() {
		var (
			f                               findings.Finding
			target, language, sha, evidence sql.NullString
			severity                        string
			detectedAt                      time.Time
			meta                            sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Plugin, &f.Type, &f.Message, &target, &f.Offset, &f.Size,
			&language, &sha, &evidence, &severity, &detectedAt, &meta); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Version = findings.SchemaVersion
		f.Target = target.String
		f.Language = language.String
		f.SHA256 = sha.String
		f.Evidence = evidence.String
		f.Severity = findings.Severity(severity)
		f.DetectedAt = findings.NewTimestamp(detectedAt)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &f.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", f.ID, err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
