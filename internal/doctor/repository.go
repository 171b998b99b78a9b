package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/types"
)

// Repository provides database operations for doctors
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new doctor repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const doctorColumns = `id, doctor_number, email, password_hash,
	first_name, last_name, specialization, qualifications, bio,
	experience_years, consultation_fee, status,
	source_system, source_code, created_at, updated_at`

// Create creates a new doctor
func (r *Repository) Create(ctx context.Context, d *Doctor) error {
	query := `
		INSERT INTO identity.doctors (
			id, doctor_number, email, password_hash,
			first_name, last_name, specialization, qualifications, bio,
			experience_years, consultation_fee, status,
			source_system, source_code, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.DoctorNumber, d.Email, d.PasswordHash,
		d.FirstName, d.LastName, d.Specialization, d.Qualifications, d.Bio,
		d.ExperienceYears, d.ConsultationFee, d.Status,
		nullable(d.SourceSystem), nullable(d.SourceCode), d.CreatedAt, d.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("doctor with this email already exists")
		}
		return errors.Wrap(err, "failed to create doctor")
	}

	return nil
}

// Get retrieves a doctor by ID, with availability windows
func (r *Repository) Get(ctx context.Context, id types.ID) (*Doctor, error) {
	query := fmt.Sprintf(`SELECT %s FROM identity.doctors WHERE id = $1`, doctorColumns)

	d, err := r.scanDoctor(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("doctor", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get doctor")
	}

	windows, err := r.GetAvailability(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Availability = windows

	return d, nil
}

// GetByEmail retrieves a doctor by email, for login
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	query := fmt.Sprintf(`SELECT %s FROM identity.doctors WHERE LOWER(email) = LOWER($1)`, doctorColumns)

	d, err := r.scanDoctor(r.pool.QueryRow(ctx, query, email))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("doctor", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get doctor by email")
	}

	return d, nil
}

// GetBySource retrieves a doctor by its partner-system identity
func (r *Repository) GetBySource(ctx context.Context, sourceSystem, sourceCode string) (*Doctor, error) {
	query := fmt.Sprintf(`SELECT %s FROM identity.doctors WHERE source_system = $1 AND source_code = $2`, doctorColumns)

	d, err := r.scanDoctor(r.pool.QueryRow(ctx, query, sourceSystem, sourceCode))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("doctor", sourceSystem+"/"+sourceCode)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get doctor by source")
	}

	return d, nil
}

// Update updates a doctor's profile
func (r *Repository) Update(ctx context.Context, d *Doctor) error {
	query := `
		UPDATE identity.doctors SET
			email = $2, first_name = $3, last_name = $4,
			specialization = $5, qualifications = $6, bio = $7,
			experience_years = $8, consultation_fee = $9, status = $10,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		d.ID, d.Email, d.FirstName, d.LastName,
		d.Specialization, d.Qualifications, d.Bio,
		d.ExperienceYears, d.ConsultationFee, d.Status,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("doctor with this email already exists")
		}
		return errors.Wrap(err, "failed to update doctor")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("doctor", d.ID.String())
	}

	return nil
}

// Upsert inserts or updates a doctor keyed by its partner-system identity.
// Used by roster imports; the profile's credentials are left untouched on
// update.
func (r *Repository) Upsert(ctx context.Context, d *Doctor) error {
	query := `
		INSERT INTO identity.doctors (
			id, doctor_number, email, password_hash,
			first_name, last_name, specialization, qualifications, bio,
			experience_years, consultation_fee, status,
			source_system, source_code, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			specialization = EXCLUDED.specialization,
			qualifications = EXCLUDED.qualifications,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.DoctorNumber, d.Email, d.PasswordHash,
		d.FirstName, d.LastName, d.Specialization, d.Qualifications, d.Bio,
		d.ExperienceYears, d.ConsultationFee, d.Status,
		nullable(d.SourceSystem), nullable(d.SourceCode),
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert doctor")
	}

	return nil
}

// ListFilter defines filters for listing doctors
type ListFilter struct {
	Specialization string
	Status         *Status
	Search         string
	Limit          int
	Offset         int
}

// List lists doctors with filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Doctor, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argNum := 0

	if filter.Specialization != "" {
		argNum++
		conditions = append(conditions, fmt.Sprintf("LOWER(specialization) = LOWER($%d)", argNum))
		args = append(args, filter.Specialization)
	}
	if filter.Status != nil {
		argNum++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		argNum++
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR specialization ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM identity.doctors WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count doctors")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM identity.doctors
		WHERE %s
		ORDER BY last_name, first_name
		LIMIT %d OFFSET %d`, doctorColumns, where, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list doctors")
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan doctor")
		}
		doctors = append(doctors, *d)
	}

	return doctors, total, rows.Err()
}

// ListActiveBySpecialization returns bookable doctors of a specialization,
// availability windows included.
func (r *Repository) ListActiveBySpecialization(ctx context.Context, specialization string) ([]Doctor, error) {
	active := StatusActive
	doctors, _, err := r.List(ctx, ListFilter{
		Specialization: specialization,
		Status:         &active,
		Limit:          100,
	})
	if err != nil {
		return nil, err
	}

	for i := range doctors {
		windows, err := r.GetAvailability(ctx, doctors[i].ID)
		if err != nil {
			return nil, err
		}
		doctors[i].Availability = windows
	}

	return doctors, nil
}

// GetAvailability returns a doctor's weekly availability windows
func (r *Repository) GetAvailability(ctx context.Context, doctorID types.ID) ([]AvailabilityWindow, error) {
	query := `
		SELECT id, doctor_id, weekday, start_time, end_time, enabled
		FROM identity.doctor_availability
		WHERE doctor_id = $1
		ORDER BY weekday, start_time`

	rows, err := r.pool.Query(ctx, query, doctorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get availability")
	}
	defer rows.Close()

	var windows []AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.DoctorID, &w.Weekday, &w.StartTime, &w.EndTime, &w.Enabled); err != nil {
			return nil, errors.Wrap(err, "failed to scan availability window")
		}
		windows = append(windows, w)
	}

	return windows, rows.Err()
}

// ReplaceAvailability replaces a doctor's weekly windows atomically
func (r *Repository) ReplaceAvailability(ctx context.Context, doctorID types.ID, windows []AvailabilityWindow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM identity.doctor_availability WHERE doctor_id = $1`, doctorID); err != nil {
		return errors.Wrap(err, "failed to clear availability")
	}

	query := `
		INSERT INTO identity.doctor_availability (id, doctor_id, weekday, start_time, end_time, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, w := range windows {
		id := w.ID
		if id.IsZero() {
			id = types.NewID()
		}
		if _, err := tx.Exec(ctx, query, id, doctorID, w.Weekday, w.StartTime, w.EndTime, w.Enabled); err != nil {
			return errors.Wrap(err, "failed to save availability window")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// Specializations returns the distinct specializations of active doctors
func (r *Repository) Specializations(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT specialization FROM identity.doctors WHERE status = 'active' ORDER BY specialization`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list specializations")
	}
	defer rows.Close()

	var specs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "failed to scan specialization")
		}
		specs = append(specs, s)
	}

	return specs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanDoctor(row rowScanner) (*Doctor, error) {
	d := &Doctor{}
	var sourceSystem, sourceCode *string

	err := row.Scan(
		&d.ID, &d.DoctorNumber, &d.Email, &d.PasswordHash,
		&d.FirstName, &d.LastName, &d.Specialization, &d.Qualifications, &d.Bio,
		&d.ExperienceYears, &d.ConsultationFee, &d.Status,
		&sourceSystem, &sourceCode, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sourceSystem != nil {
		d.SourceSystem = *sourceSystem
	}
	if sourceCode != nil {
		d.SourceCode = *sourceCode
	}

	return d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
