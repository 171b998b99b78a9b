package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/types"
)

// Repository provides database operations for patients
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new patient repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const patientColumns = `id, patient_number, email, password_hash,
	first_name, last_name, date_of_birth, phone, gender, blood_group, allergies,
	created_at, updated_at`

// Create creates a new patient
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO identity.patients (
			id, patient_number, email, password_hash,
			first_name, last_name, date_of_birth, phone, gender, blood_group, allergies,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.PatientNumber, p.Email, p.PasswordHash,
		p.FirstName, p.LastName, p.DateOfBirth, p.Phone, p.Gender, p.BloodGroup, p.Allergies,
		p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("patient with this email already exists")
		}
		return errors.Wrap(err, "failed to create patient")
	}

	return nil
}

// Get retrieves a patient by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM identity.patients WHERE id = $1`, patientColumns)

	p, err := r.scanPatient(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient")
	}

	return p, nil
}

// GetByEmail retrieves a patient by email, for login
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM identity.patients WHERE LOWER(email) = LOWER($1)`, patientColumns)

	p, err := r.scanPatient(r.pool.QueryRow(ctx, query, email))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient by email")
	}

	return p, nil
}

// Update updates a patient profile
func (r *Repository) Update(ctx context.Context, p *Patient) error {
	query := `
		UPDATE identity.patients SET
			email = $2, first_name = $3, last_name = $4, date_of_birth = $5,
			phone = $6, gender = $7, blood_group = $8, allergies = $9,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.Email, p.FirstName, p.LastName, p.DateOfBirth,
		p.Phone, p.Gender, p.BloodGroup, p.Allergies,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("patient with this email already exists")
		}
		return errors.Wrap(err, "failed to update patient")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("patient", p.ID.String())
	}

	return nil
}

// ListFilter defines filters for listing patients
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

// List lists patients with filters. Admin surface.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Patient, int, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if filter.Search != "" {
		conditions = append(conditions,
			"(first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1 OR patient_number ILIKE $1)")
		args = append(args, "%"+filter.Search+"%")
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM identity.patients WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count patients")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM identity.patients
		WHERE %s
		ORDER BY last_name, first_name
		LIMIT %d OFFSET %d`, patientColumns, where, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list patients")
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan patient")
		}
		patients = append(patients, *p)
	}

	return patients, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanPatient(row rowScanner) (*Patient, error) {
	p := &Patient{}
	err := row.Scan(
		&p.ID, &p.PatientNumber, &p.Email, &p.PasswordHash,
		&p.FirstName, &p.LastName, &p.DateOfBirth, &p.Phone, &p.Gender, &p.BloodGroup, &p.Allergies,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
