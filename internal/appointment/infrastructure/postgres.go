package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorry/platform/internal/appointment/domain"
	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/types"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const appointmentColumns = `id, appointment_number, patient_id, doctor_id,
	appointment_date, appointment_time, duration_minutes,
	status, consultation_type, symptoms, notes, prescription,
	call_room_id, call_started_at, call_ended_at, call_duration_minutes,
	payment_status, amount,
	created_at, updated_at, cancelled_at`

// Save saves a new appointment. The partial unique index on
// (doctor_id, appointment_date, appointment_time) guards the slot: a
// concurrent booking of the same slot surfaces here as a conflict.
func (r *PostgresRepository) Save(ctx context.Context, a *domain.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scheduling.appointments (
			id, appointment_number, patient_id, doctor_id,
			appointment_date, appointment_time, duration_minutes,
			status, consultation_type, symptoms, notes, prescription,
			call_room_id, call_started_at, call_ended_at, call_duration_minutes,
			payment_status, amount,
			created_at, updated_at, cancelled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err = tx.Exec(ctx, query,
		a.ID, a.AppointmentNumber, a.PatientID, a.DoctorID,
		a.AppointmentDate, a.AppointmentTime, a.Duration,
		a.Status, a.ConsultationType, a.Symptoms, a.Notes, a.Prescription,
		a.CallRoomID, a.CallStartedAt, a.CallEndedAt, a.CallDuration,
		a.PaymentStatus, a.Amount,
		a.CreatedAt, a.UpdatedAt, a.CancelledAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "appointments_slot_unique") {
			return errors.Conflict("this slot is already booked")
		}
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("appointment with this number already exists")
		}
		return errors.Wrap(err, "failed to save appointment")
	}

	for _, e := range a.Events {
		if err := r.saveEvent(ctx, tx, &e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// FindByID finds an appointment by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduling.appointments WHERE id = $1`, appointmentColumns)

	a, err := r.scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find appointment")
	}

	events, err := r.GetEvents(ctx, a.ID, 100, 0)
	if err != nil {
		return nil, err
	}
	a.Events = events

	return a, nil
}

// FindByNumber finds an appointment by its human-readable number
func (r *PostgresRepository) FindByNumber(ctx context.Context, appointmentNumber string) (*domain.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduling.appointments WHERE appointment_number = $1`, appointmentColumns)

	a, err := r.scanAppointment(r.pool.QueryRow(ctx, query, appointmentNumber))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("appointment", appointmentNumber)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find appointment by number")
	}

	return a, nil
}

// Update updates an appointment's mutable fields and appends new events
func (r *PostgresRepository) Update(ctx context.Context, a *domain.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE scheduling.appointments SET
			status = $2, notes = $3, prescription = $4,
			call_started_at = $5, call_ended_at = $6, call_duration_minutes = $7,
			payment_status = $8, updated_at = $9, cancelled_at = $10
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		a.ID, a.Status, a.Notes, a.Prescription,
		a.CallStartedAt, a.CallEndedAt, a.CallDuration,
		a.PaymentStatus, a.UpdatedAt, a.CancelledAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update appointment")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("appointment", a.ID.String())
	}

	// Persist only events not yet stored
	for _, e := range a.Events {
		if err := r.saveEventIfNew(ctx, tx, &e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// FindByPatient lists a patient's appointments
func (r *PostgresRepository) FindByPatient(ctx context.Context, patientID types.ID, filter domain.ListFilter) ([]domain.Appointment, int, error) {
	return r.list(ctx, filter, "patient_id = $1", []any{patientID})
}

// FindByDoctor lists a doctor's appointments
func (r *PostgresRepository) FindByDoctor(ctx context.Context, doctorID types.ID, filter domain.ListFilter) ([]domain.Appointment, int, error) {
	return r.list(ctx, filter, "doctor_id = $1", []any{doctorID})
}

// BookedSlots returns the slot labels held by live appointments for a
// doctor on a date.
func (r *PostgresRepository) BookedSlots(ctx context.Context, doctorID types.ID, date time.Time) ([]string, error) {
	query := `
		SELECT appointment_time
		FROM scheduling.appointments
		WHERE doctor_id = $1 AND appointment_date = $2
		  AND status NOT IN ('cancelled', 'no_show')`

	rows, err := r.pool.Query(ctx, query, doctorID, date)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query booked slots")
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, errors.Wrap(err, "failed to scan booked slot")
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// FindConfirmedByDate returns confirmed appointments on a date
func (r *PostgresRepository) FindConfirmedByDate(ctx context.Context, date time.Time) ([]domain.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduling.appointments
		WHERE appointment_date = $1 AND status = 'confirmed'
		ORDER BY appointment_time`, appointmentColumns)

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query confirmed appointments")
	}
	defer rows.Close()

	var appointments []domain.Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan appointment")
		}
		appointments = append(appointments, *a)
	}

	return appointments, rows.Err()
}

// list runs a filtered count + page query with a fixed first condition
func (r *PostgresRepository) list(ctx context.Context, filter domain.ListFilter, condition string, args []any) ([]domain.Appointment, int, error) {
	conditions := []string{condition}
	argNum := len(args)

	if filter.Status != nil {
		argNum++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		argNum++
		conditions = append(conditions, fmt.Sprintf("appointment_date >= $%d", argNum))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		argNum++
		conditions = append(conditions, fmt.Sprintf("appointment_date <= $%d", argNum))
		args = append(args, *filter.DateTo)
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM scheduling.appointments WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count appointments")
	}

	order := "appointment_date, appointment_time"
	if filter.OrderDesc {
		order = "appointment_date DESC, appointment_time DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM scheduling.appointments
		WHERE %s
		ORDER BY %s
		LIMIT %d OFFSET %d`, appointmentColumns, where, order, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list appointments")
	}
	defer rows.Close()

	var appointments []domain.Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan appointment")
		}
		appointments = append(appointments, *a)
	}

	return appointments, total, rows.Err()
}

// AddEvent appends a single timeline event
func (r *PostgresRepository) AddEvent(ctx context.Context, appointmentID types.ID, e *domain.AppointmentEvent) error {
	e.AppointmentID = appointmentID

	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	query := `
		INSERT INTO scheduling.appointment_events (id, appointment_id, type, actor_id, description, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query, e.ID, e.AppointmentID, e.Type, e.ActorID, e.Description, dataJSON, e.Timestamp)
	if err != nil {
		return errors.Wrap(err, "failed to add appointment event")
	}

	return nil
}

// GetEvents returns timeline events for an appointment, oldest first
func (r *PostgresRepository) GetEvents(ctx context.Context, appointmentID types.ID, limit, offset int) ([]domain.AppointmentEvent, error) {
	query := `
		SELECT id, appointment_id, type, actor_id, description, data, timestamp
		FROM scheduling.appointment_events
		WHERE appointment_id = $1
		ORDER BY timestamp
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, appointmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get appointment events")
	}
	defer rows.Close()

	var events []domain.AppointmentEvent
	for rows.Next() {
		var e domain.AppointmentEvent
		var dataJSON []byte
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.Type, &e.ActorID, &e.Description, &dataJSON, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "failed to scan appointment event")
		}
		if len(dataJSON) > 0 {
			_ = json.Unmarshal(dataJSON, &e.Data)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func (r *PostgresRepository) saveEvent(ctx context.Context, tx pgx.Tx, e *domain.AppointmentEvent) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	query := `
		INSERT INTO scheduling.appointment_events (id, appointment_id, type, actor_id, description, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, query, e.ID, e.AppointmentID, e.Type, e.ActorID, e.Description, dataJSON, e.Timestamp)
	if err != nil {
		return errors.Wrap(err, "failed to save appointment event")
	}

	return nil
}

func (r *PostgresRepository) saveEventIfNew(ctx context.Context, tx pgx.Tx, e *domain.AppointmentEvent) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	query := `
		INSERT INTO scheduling.appointment_events (id, appointment_id, type, actor_id, description, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err = tx.Exec(ctx, query, e.ID, e.AppointmentID, e.Type, e.ActorID, e.Description, dataJSON, e.Timestamp)
	if err != nil {
		return errors.Wrap(err, "failed to save appointment event")
	}

	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanAppointment(row rowScanner) (*domain.Appointment, error) {
	a := &domain.Appointment{}
	err := row.Scan(
		&a.ID, &a.AppointmentNumber, &a.PatientID, &a.DoctorID,
		&a.AppointmentDate, &a.AppointmentTime, &a.Duration,
		&a.Status, &a.ConsultationType, &a.Symptoms, &a.Notes, &a.Prescription,
		&a.CallRoomID, &a.CallStartedAt, &a.CallEndedAt, &a.CallDuration,
		&a.PaymentStatus, &a.Amount,
		&a.CreatedAt, &a.UpdatedAt, &a.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
