package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sqlitedriver "modernc.org/sqlite"

	"github.com/custodia-labs/threatdocs/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// foldFunc is the SQL name of the Unicode case fold used by substring
// filters. SQLite's own LIKE and lower() only fold ASCII.
const foldFunc = "td_fold"

func init() {
	sqlitedriver.MustRegisterDeterministicScalarFunction(foldFunc, 1, fold)
}

func fold(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return foldCase(v), nil
	case []byte:
		return foldCase(string(v)), nil
	default:
		return v, nil
	}
}

func foldCase(s string) string {
	return strings.ToLower(s)
}

// timeLayout is fixed width so that stored times sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-based storage that provides access to the entity store
// interface through a wrapper type.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.threatdocs/data/threatdocs.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".threatdocs", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "threatdocs.db")

	// Open database with WAL mode so searches do not block on ingestion
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EntityStore returns an EntityStore interface backed by this store.
func (s *Store) EntityStore() driven.EntityStore {
	return &entityStore{store: s}
}

// migrate runs all pending migrations, recording each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Entity Store ====================

// entityStore implements driven.EntityStore.
type entityStore struct {
	store *Store
}

var _ driven.EntityStore = (*entityStore)(nil)

// SaveBatch inserts the document and its records in one transaction.
// Any constraint violation rolls the whole batch back.
func (s *entityStore) SaveBatch(ctx context.Context, batch domain.Batch) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	doc := batch.Document
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, uploaded_at, processed_at)
		VALUES (?, ?, ?, ?)
	`, doc.ID, doc.Filename, formatTime(doc.UploadedAt), formatNullTime(doc.ProcessedAt)); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if len(batch.CVEs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cves (id, document_id, cve_id, description, severity, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, c := range batch.CVEs {
			if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.CVEID,
				c.Description, c.Severity, formatTime(c.ExtractedAt)); err != nil {
				return fmt.Errorf("saving cve %s: %w", c.CVEID, err)
			}
		}
	}

	if len(batch.Actors) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO threat_actors (id, document_id, name, aliases, description, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, a := range batch.Actors {
			if _, err := stmt.ExecContext(ctx, a.ID, a.DocumentID, a.Name,
				a.AliasesText(), a.Description, formatTime(a.ExtractedAt)); err != nil {
				return fmt.Errorf("saving threat actor %s: %w", a.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *entityStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, filename, uploaded_at, processed_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// SearchDocuments returns documents matching the document filters.
func (s *entityStore) SearchDocuments(ctx context.Context, c domain.SearchCriteria) ([]domain.Document, error) {
	var w where
	w.like("d.filename", c.Filename)
	if after, ok := c.UploadedAfter.Get(); ok {
		w.add("d.uploaded_at >= ?", formatTime(after))
	}
	if before, ok := c.UploadedBefore.Get(); ok {
		w.add("d.uploaded_at <= ?", formatTime(before))
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT d.id, d.filename, d.uploaded_at, d.processed_at
		FROM documents d`+w.sql()+`
		ORDER BY d.rowid
	`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// SearchCVEs returns CVE records joined to their owning document.
func (s *entityStore) SearchCVEs(ctx context.Context, c domain.SearchCriteria) ([]domain.CVERecord, error) {
	var w where
	w.like("c.cve_id", c.CVEID)
	w.like("c.severity", c.CVESeverity)
	w.like("c.description", c.CVEDescription)
	w.like("d.filename", c.Filename)

	return s.queryCVEs(ctx, `
		SELECT c.id, c.document_id, c.cve_id, c.description, c.severity, c.extracted_at
		FROM cves c
		JOIN documents d ON d.id = c.document_id`+w.sql()+`
		ORDER BY c.rowid
	`, w.args...)
}

// SearchThreatActors returns threat actor records joined to their owning document.
func (s *entityStore) SearchThreatActors(
	ctx context.Context,
	c domain.SearchCriteria,
) ([]domain.ThreatActorRecord, error) {
	var w where
	w.like("a.name", c.ActorName)
	w.like("a.description", c.ActorDescription)
	w.like("a.aliases", c.ActorAlias)
	w.like("d.filename", c.Filename)

	return s.queryActors(ctx, `
		SELECT a.id, a.document_id, a.name, a.aliases, a.description, a.extracted_at
		FROM threat_actors a
		JOIN documents d ON d.id = a.document_id`+w.sql()+`
		ORDER BY a.rowid
	`, w.args...)
}

// ListCVEs returns the CVE records of one document.
func (s *entityStore) ListCVEs(ctx context.Context, documentID string) ([]domain.CVERecord, error) {
	return s.queryCVEs(ctx, `
		SELECT id, document_id, cve_id, description, severity, extracted_at
		FROM cves WHERE document_id = ?
		ORDER BY rowid
	`, documentID)
}

// ListThreatActors returns the threat actor records of one document.
func (s *entityStore) ListThreatActors(ctx context.Context, documentID string) ([]domain.ThreatActorRecord, error) {
	return s.queryActors(ctx, `
		SELECT id, document_id, name, aliases, description, extracted_at
		FROM threat_actors WHERE document_id = ?
		ORDER BY rowid
	`, documentID)
}

// Close closes the underlying database.
func (s *entityStore) Close() error {
	return s.store.Close()
}

func (s *entityStore) queryCVEs(ctx context.Context, query string, args ...any) ([]domain.CVERecord, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cves: %w", err)
	}
	defer rows.Close()

	cves := []domain.CVERecord{}
	for rows.Next() {
		var c domain.CVERecord
		var extractedAt string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.CVEID, &c.Description, &c.Severity, &extractedAt); err != nil {
			return nil, fmt.Errorf("scanning cve: %w", err)
		}
		if c.ExtractedAt, err = parseTime(extractedAt); err != nil {
			return nil, err
		}
		cves = append(cves, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cves: %w", err)
	}
	return cves, nil
}

func (s *entityStore) queryActors(ctx context.Context, query string, args ...any) ([]domain.ThreatActorRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying threat actors: %w", err)
	}
	defer rows.Close()

	actors := []domain.ThreatActorRecord{}
	for rows.Next() {
		var a domain.ThreatActorRecord
		var aliases, extractedAt string
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.Name, &aliases, &a.Description, &extractedAt); err != nil {
			return nil, fmt.Errorf("scanning threat actor: %w", err)
		}
		if a.Aliases, err = domain.DecodeAliases(aliases); err != nil {
			return nil, err
		}
		if a.ExtractedAt, err = parseTime(extractedAt); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threat actors: %w", err)
	}
	return actors, nil
}

// ==================== Helpers ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a document row. sql.ErrNoRows is returned unwrapped.
func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var uploadedAt string
	var processedAt sql.NullString

	if err := row.Scan(&doc.ID, &doc.Filename, &uploadedAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	var err error
	if doc.UploadedAt, err = parseTime(uploadedAt); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		t, err := parseTime(processedAt.String)
		if err != nil {
			return nil, err
		}
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

// where accumulates ANDed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

// like adds a case-insensitive substring condition when filter is set.
// Both sides are folded in Go so non-ASCII text compares without case.
// Wildcards in the filter value match literally.
func (w *where) like(column string, filter domain.Optional[string]) {
	needle, ok := filter.Get()
	if !ok {
		return
	}
	w.add(foldFunc+"("+column+`) LIKE ? ESCAPE '\'`, "%"+escapeLike(foldCase(needle))+"%")
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "\n\t\tWHERE " + strings.Join(w.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
