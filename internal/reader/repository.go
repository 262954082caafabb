package reader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReportUpdate carries the telemetry fields applied to a reader when the
// device submits a status report. The reported state is accepted
// unconditionally; device firmware owns report-originated transitions.
type ReportUpdate struct {
	State           State
	Temperature     *float64
	CardID          string
	Reason          string
	FirmwareVersion string
	HelpRequested   bool
}

// Repository defines the interface for reader persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a reader by its unique identifier.
	// Returns ErrNotFound if the reader does not exist.
	GetByID(ctx context.Context, id string) (*Reader, error)

	// GetBySerial retrieves a reader by its hardware serial number.
	GetBySerial(ctx context.Context, serial string) (*Reader, error)

	// GetByName retrieves a reader by its unique human-readable name.
	GetByName(ctx context.Context, name string) (*Reader, error)

	// List retrieves all readers. Help-requesting readers sort first,
	// then by id, so poll-driven operator UIs stay stable.
	List(ctx context.Context) ([]Reader, error)

	// ListUnbound retrieves paired readers with no equipment binding.
	ListUnbound(ctx context.Context) ([]Reader, error)

	// ListByEquipment retrieves all readers bound to an equipment instance.
	ListByEquipment(ctx context.Context, equipmentID string) ([]Reader, error)

	// Create inserts a new reader.
	// Returns ErrExists if the serial number or name is already taken.
	Create(ctx context.Context, r *Reader) error

	// Rename changes a reader's name.
	// Returns ErrExists if the name is already taken.
	Rename(ctx context.Context, id, name string) error

	// SetBinding binds the reader to an equipment instance.
	SetBinding(ctx context.Context, id, equipmentID string) error

	// ClearBinding unbinds every reader referencing the equipment instance.
	// The reader rows survive; only the reference is cleared.
	ClearBinding(ctx context.Context, equipmentID string) error

	// AdvanceKeyCycle atomically increments the reader's key cycle and
	// records the pairing timestamp, returning the new cycle value.
	// Concurrent callers serialise here: each observes a distinct cycle.
	AdvanceKeyCycle(ctx context.Context, id string, pairedAt time.Time) (int, error)

	// ApplyReport persists device telemetry and stamps last_report_at.
	ApplyReport(ctx context.Context, id string, u ReportUpdate, at time.Time) error

	// SetCommandedState records the operator's last requested state.
	SetCommandedState(ctx context.Context, id string, state State) error

	// SetHelpRequested sets or clears the help flag.
	SetHelpRequested(ctx context.Context, id string, help bool) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// readerColumns is the SELECT column list shared by all queries.
const readerColumns = `id, name, serial_number, equipment_id, key_cycle, paired_at,
	reported_state, commanded_state, last_report_at, help_requested,
	temperature, current_card_id, last_report_reason, firmware_version,
	created_at, updated_at`

// GetByID retrieves a reader by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Reader, error) {
	return r.getWhere(ctx, "id = ?", id)
}

// GetBySerial retrieves a reader by its hardware serial number.
func (r *SQLiteRepository) GetBySerial(ctx context.Context, serial string) (*Reader, error) {
	return r.getWhere(ctx, "serial_number = ?", serial)
}

// GetByName retrieves a reader by its unique human-readable name.
func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*Reader, error) {
	return r.getWhere(ctx, "name = ?", name)
}

func (r *SQLiteRepository) getWhere(ctx context.Context, where string, arg any) (*Reader, error) {
	query := "SELECT " + readerColumns + " FROM readers WHERE " + where
	row := r.db.QueryRowContext(ctx, query, arg)
	rec, err := scanReader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying reader: %w", err)
	}
	return rec, nil
}

// List retrieves all readers, help-requesting readers first, then by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Reader, error) {
	query := "SELECT " + readerColumns + ` FROM readers
		ORDER BY help_requested DESC, id ASC`
	return r.queryReaders(ctx, query)
}

// ListUnbound retrieves paired readers with no equipment binding.
func (r *SQLiteRepository) ListUnbound(ctx context.Context) ([]Reader, error) {
	query := "SELECT " + readerColumns + ` FROM readers
		WHERE serial_number IS NOT NULL AND equipment_id IS NULL
		ORDER BY name ASC, id ASC`
	return r.queryReaders(ctx, query)
}

// ListByEquipment retrieves all readers bound to an equipment instance.
func (r *SQLiteRepository) ListByEquipment(ctx context.Context, equipmentID string) ([]Reader, error) {
	query := "SELECT " + readerColumns + ` FROM readers
		WHERE equipment_id = ?
		ORDER BY id ASC`
	return r.queryReaders(ctx, query, equipmentID)
}

// Create inserts a new reader.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Reader) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query := `
		INSERT INTO readers (
			id, name, serial_number, equipment_id, key_cycle, paired_at,
			reported_state, commanded_state, last_report_at, help_requested,
			temperature, current_card_id, last_report_reason, firmware_version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		emptyAsNull(rec.SerialNumber),
		nullableString(rec.EquipmentID),
		rec.KeyCycle,
		nullableTime(rec.PairedAt),
		string(rec.ReportedState),
		string(rec.CommandedState),
		nullableTime(rec.LastReportAt),
		boolToInt(rec.HelpRequested),
		nullableFloat(rec.Temperature),
		emptyAsNull(rec.CurrentCardID),
		emptyAsNull(rec.LastReportReason),
		emptyAsNull(rec.FirmwareVersion),
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting reader: %w", err)
	}

	return nil
}

// Rename changes a reader's name.
func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE readers SET name = ?, updated_at = ? WHERE id = ?",
		name, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("renaming reader: %w", err)
	}
	return requireRow(result)
}

// SetBinding binds the reader to an equipment instance.
func (r *SQLiteRepository) SetBinding(ctx context.Context, id, equipmentID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE readers SET equipment_id = ?, updated_at = ? WHERE id = ?",
		equipmentID, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("binding reader: %w", err)
	}
	return requireRow(result)
}

// ClearBinding unbinds every reader referencing the equipment instance.
func (r *SQLiteRepository) ClearBinding(ctx context.Context, equipmentID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE readers SET equipment_id = NULL, updated_at = ? WHERE equipment_id = ?",
		time.Now().UTC().Format(time.RFC3339), equipmentID,
	)
	if err != nil {
		return fmt.Errorf("clearing reader binding: %w", err)
	}
	return nil
}

// AdvanceKeyCycle atomically increments the key cycle and records the
// pairing timestamp, returning the new cycle. The increment and read-back
// run inside one transaction so concurrent pairings each observe a
// distinct cycle value.
func (r *SQLiteRepository) AdvanceKeyCycle(ctx context.Context, id string, pairedAt time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting pairing transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE readers SET key_cycle = key_cycle + 1, paired_at = ?, updated_at = ? WHERE id = ?`,
		pairedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("advancing key cycle: %w", err)
	}
	if err := requireRow(result); err != nil {
		return 0, err
	}

	var cycle int
	if err := tx.QueryRowContext(ctx,
		"SELECT key_cycle FROM readers WHERE id = ?", id,
	).Scan(&cycle); err != nil {
		return 0, fmt.Errorf("reading advanced key cycle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing key cycle advance: %w", err)
	}
	return cycle, nil
}

// ApplyReport persists device telemetry and stamps last_report_at.
func (r *SQLiteRepository) ApplyReport(ctx context.Context, id string, u ReportUpdate, at time.Time) error {
	query := `
		UPDATE readers SET
			reported_state = ?, temperature = ?, current_card_id = ?,
			last_report_reason = ?, firmware_version = ?, help_requested = ?,
			last_report_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(u.State),
		nullableFloat(u.Temperature),
		emptyAsNull(u.CardID),
		emptyAsNull(u.Reason),
		emptyAsNull(u.FirmwareVersion),
		boolToInt(u.HelpRequested),
		at.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("applying reader report: %w", err)
	}
	return requireRow(result)
}

// SetCommandedState records the operator's last requested state.
func (r *SQLiteRepository) SetCommandedState(ctx context.Context, id string, state State) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE readers SET commanded_state = ?, updated_at = ? WHERE id = ?",
		string(state), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("setting commanded state: %w", err)
	}
	return requireRow(result)
}

// SetHelpRequested sets or clears the help flag.
func (r *SQLiteRepository) SetHelpRequested(ctx context.Context, id string, help bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE readers SET help_requested = ?, updated_at = ? WHERE id = ?",
		boolToInt(help), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("setting help flag: %w", err)
	}
	return requireRow(result)
}

// queryReaders executes a query and returns a slice of readers.
func (r *SQLiteRepository) queryReaders(ctx context.Context, query string, args ...any) ([]Reader, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readers: %w", err)
	}
	defer rows.Close()

	var readers []Reader
	for rows.Next() {
		rec, err := scanReader(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reader: %w", err)
		}
		readers = append(readers, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readers: %w", err)
	}

	return readers, nil
}

// requireRow converts a zero-rows-affected result into ErrNotFound.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReader scans a row or rows result into a Reader.
func scanReader(scanner rowScanner) (*Reader, error) {
	var rec Reader
	var serial, equipmentID sql.NullString
	var pairedAt, lastReportAt sql.NullString
	var cardID, reason, firmware sql.NullString
	var reportedState, commandedState string
	var temperature sql.NullFloat64
	var helpRequested int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rec.ID,
		&rec.Name,
		&serial,
		&equipmentID,
		&rec.KeyCycle,
		&pairedAt,
		&reportedState,
		&commandedState,
		&lastReportAt,
		&helpRequested,
		&temperature,
		&cardID,
		&reason,
		&firmware,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ReportedState = State(reportedState)
	rec.CommandedState = State(commandedState)
	rec.HelpRequested = helpRequested != 0

	if serial.Valid {
		rec.SerialNumber = serial.String
	}
	if equipmentID.Valid {
		rec.EquipmentID = &equipmentID.String
	}
	if cardID.Valid {
		rec.CurrentCardID = cardID.String
	}
	if reason.Valid {
		rec.LastReportReason = reason.String
	}
	if firmware.Valid {
		rec.FirmwareVersion = firmware.String
	}
	if temperature.Valid {
		rec.Temperature = &temperature.Float64
	}

	if pairedAt.Valid {
		t, err := time.Parse(time.RFC3339, pairedAt.String)
		if err == nil {
			rec.PairedAt = &t
		}
	}
	if lastReportAt.Valid {
		t, err := time.Parse(time.RFC3339, lastReportAt.String)
		if err == nil {
			rec.LastReportAt = &t
		}
	}

	var parseErr error
	rec.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	rec.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &rec, nil
}

// emptyAsNull returns nil for empty strings so SQLite stores NULL.
func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
