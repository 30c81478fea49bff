package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite database holding the inspections table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs pending migrations.
// Pass ":memory:" for an in-memory database (used by tests).
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Queries ---

// Execute runs a read-only statement and returns its rows. Only SELECT and
// WITH statements are accepted; the statement runs inside a transaction that
// is always rolled back, so nothing it does can persist.
func (s *Store) Execute(ctx context.Context, query string) (QueryResult, error) {
	if !isReadOnly(query) {
		return QueryResult{}, ErrReadOnly
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QueryResult{}, fmt.Errorf("sql execution: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{}, fmt.Errorf("sql execution: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("sql execution: %w", err)
	}

	result := QueryResult{Columns: cols, Rows: []Row{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, fmt.Errorf("sql execution: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = scalar(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("sql execution: %w", err)
	}
	return result, nil
}

// scalar normalizes driver values to JSON-friendly scalars.
func scalar(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}

// isReadOnly reports whether the first keyword of query, after comments, is SELECT or WITH.
func isReadOnly(query string) bool {
	q := strings.TrimSpace(query)
	for {
		switch {
		case strings.HasPrefix(q, "--"):
			nl := strings.IndexByte(q, '\n')
			if nl < 0 {
				return false
			}
			q = strings.TrimSpace(q[nl+1:])
		case strings.HasPrefix(q, "/*"):
			end := strings.Index(q, "*/")
			if end < 0 {
				return false
			}
			q = strings.TrimSpace(q[end+2:])
		default:
			q = strings.TrimLeft(q, "(")
			fields := strings.Fields(q)
			if len(fields) == 0 {
				return false
			}
			kw := strings.ToUpper(fields[0])
			return kw == "SELECT" || kw == "WITH"
		}
	}
}

// CountRecords returns the number of rows in the inspections table.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inspections").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// IndexTexts returns the record_id and damage_descriptions of every record,
// the input for building the vector index.
func (s *Store) IndexTexts(ctx context.Context) ([]IndexText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, COALESCE(damage_descriptions, '')
		FROM inspections ORDER BY record_id`)
	if err != nil {
		return nil, fmt.Errorf("loading index texts: %w", err)
	}
	defer rows.Close()

	var out []IndexText
	for rows.Next() {
		var t IndexText
		if err := rows.Scan(&t.RecordID, &t.Text); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FetchByIDs returns record_id, vin, damage_descriptions and source_file for
// the given ids, in the order the ids were given. Unknown ids are skipped.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]Row, error) {
	if len(ids) == 0 {
		return []Row{}, nil
	}

	placeholders := strings.Repeat(",?", len(ids)-1)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, vin, COALESCE(damage_descriptions, ''), COALESCE(source_file, '')
		FROM inspections WHERE record_id IN (?`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching records: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Row, len(ids))
	for rows.Next() {
		var id, vin, damage, source string
		if err := rows.Scan(&id, &vin, &damage, &source); err != nil {
			return nil, err
		}
		byID[id] = Row{
			"record_id":           id,
			"vin":                 vin,
			"damage_descriptions": damage,
			"source_file":         source,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetRecord returns a single inspection record by id.
func (s *Store) GetRecord(ctx context.Context, id string) (InspectionRecord, error) {
	var r InspectionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT record_id, vin, COALESCE(inspection_date, ''), COALESCE(inspection_time, ''),
			COALESCE(inspection_type, ''), COALESCE(inspector_name, ''), COALESCE(ramp, ''),
			COALESCE(railcar_number, ''), COALESCE(bay_location, ''), COALESCE(mfg_model, ''),
			COALESCE(damage_comments, ''), COALESCE(vehicle_comments, ''), damage_count,
			COALESCE(aiag_codes, ''), COALESCE(damage_descriptions, ''), COALESCE(source_file, '')
		FROM inspections WHERE record_id = ?`, id,
	).Scan(&r.RecordID, &r.VIN, &r.InspectionDate, &r.InspectionTime, &r.InspectionType,
		&r.InspectorName, &r.Ramp, &r.RailcarNumber, &r.BayLocation, &r.MfgModel,
		&r.DamageComments, &r.VehicleComments, &r.DamageCount, &r.AIAGCodes,
		&r.DamageDescriptions, &r.SourceFile)
	if err == sql.ErrNoRows {
		return InspectionRecord{}, ErrNotFound
	}
	if err != nil {
		return InspectionRecord{}, err
	}
	return r, nil
}

// --- Records ---

// UpsertRecords inserts or replaces records in a single transaction.
func (s *Store) UpsertRecords(ctx context.Context, records []InspectionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertStatement())
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.values()...); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}

// upsertStatement writes every inspections column, updating all but
// record_id on conflict.
func upsertStatement() string {
	cols := ColumnNames()
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	return "INSERT INTO inspections (" + strings.Join(cols, ", ") + ") VALUES (?" +
		strings.Repeat(", ?", len(cols)-1) + ") ON CONFLICT(record_id) DO UPDATE SET " +
		strings.Join(updates, ", ")
}
