package his

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/doctorry/platform/internal/doctor"
	"github.com/doctorry/platform/internal/shared/metrics"
	"github.com/doctorry/platform/internal/shared/types"
)

// Adapter imports the physician roster from a partner hospital
// information system into the local doctor directory. Partner systems
// expose their roster as a SQL Server table; the adapter polls it and
// upserts changed rows. Imported profiles start inactive and without
// credentials until an administrator activates them.
type Adapter struct {
	db      *sql.DB
	config  Config
	doctors *doctor.Repository

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// New creates a new roster import adapter
func New(cfg Config, doctors *doctor.Repository) *Adapter {
	return &Adapter{
		config:  cfg,
		doctors: doctors,
	}
}

// Start opens the database connection and starts polling
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.config.Host,
		a.config.Port,
		a.config.Database,
		a.config.User,
		a.config.Password,
	)

	if a.config.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.running = true
	// First poll performs a full roster read
	a.lastPoll = time.Time{}

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	return nil
}

// Stop stops the adapter and closes the connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}

	return a.db.PingContext(ctx)
}

// SourceSystem returns the source system name
func (a *Adapter) SourceSystem() string {
	return "his"
}

func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	// Run an initial sweep immediately; the ticker covers the rest.
	a.runSweep(ctx)

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runSweep(ctx)
		}
	}
}

func (a *Adapter) runSweep(ctx context.Context) {
	a.mu.Lock()
	since := a.lastPoll
	a.lastPoll = time.Now()
	a.mu.Unlock()

	imported, err := a.syncRoster(ctx, since)
	if err != nil {
		log.Printf("roster sync against %s failed: %v", a.config.SourceCode, err)
		metrics.RecordRosterSync(a.config.SourceCode, "error")
		return
	}

	if imported > 0 {
		log.Printf("roster sync: imported %d physician(s) from %s", imported, a.config.SourceCode)
	}
	metrics.RecordRosterSync(a.config.SourceCode, "ok")
}

// syncRoster reads roster rows modified since the given time and
// upserts them into the doctor directory. Returns the number of rows
// imported.
func (a *Adapter) syncRoster(ctx context.Context, since time.Time) (int, error) {
	query := fmt.Sprintf(`
		SELECT
			PhysicianID,
			FirstName,
			LastName,
			Email,
			Specialty,
			Qualifications,
			ExperienceYears,
			IsActive,
			LastModified
		FROM %s
		WHERE LastModified > @since
		ORDER BY LastModified ASC
	`, a.config.DoctorTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return 0, fmt.Errorf("failed to query roster: %w", err)
	}
	defer rows.Close()

	imported := 0
	for rows.Next() {
		var rec RosterRecord
		var email, qualifications sql.NullString
		var experience sql.NullInt32

		err := rows.Scan(
			&rec.LocalID,
			&rec.FirstName,
			&rec.LastName,
			&email,
			&rec.Specialization,
			&qualifications,
			&experience,
			&rec.Active,
			&rec.LastModified,
		)
		if err != nil {
			log.Printf("roster sync: skipping unreadable row: %v", err)
			continue
		}

		if email.Valid {
			rec.Email = email.String
		}
		if qualifications.Valid {
			rec.Qualifications = qualifications.String
		}
		if experience.Valid {
			rec.ExperienceYears = int(experience.Int32)
		}

		d := a.toDoctor(rec)
		if err := a.doctors.Upsert(ctx, d); err != nil {
			log.Printf("roster sync: failed to upsert physician %s: %v", rec.LocalID, err)
			continue
		}
		imported++
	}

	return imported, rows.Err()
}

// toDoctor maps a roster row to a local doctor profile. The ID is
// derived from the source so that re-imports update the same row.
func (a *Adapter) toDoctor(rec RosterRecord) *doctor.Doctor {
	sourceCode := a.config.SourceCode + ":" + rec.LocalID

	return &doctor.Doctor{
		ID:              types.NewDeterministicID(a.SourceSystem(), sourceCode),
		DoctorNumber:    doctor.GenerateDoctorNumber(),
		Email:           strings.ToLower(strings.TrimSpace(rec.Email)),
		FirstName:       rec.FirstName,
		LastName:        rec.LastName,
		Specialization:  rec.Specialization,
		Qualifications:  rec.Qualifications,
		ExperienceYears: rec.ExperienceYears,
		Status:          doctor.StatusInactive,
		SourceSystem:    a.SourceSystem(),
		SourceCode:      sourceCode,
	}
}
