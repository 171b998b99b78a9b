package his

import "time"

// RosterRecord is a physician row as read from a partner hospital
// information system.
type RosterRecord struct {
	LocalID         string
	FirstName       string
	LastName        string
	Email           string
	Specialization  string
	Qualifications  string
	ExperienceYears int
	Active          bool
	LastModified    time.Time
}

// Config holds the roster import adapter configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// PollInterval controls how often the roster table is re-read
	PollInterval time.Duration

	// DoctorTable is the roster table in the partner HIS
	DoctorTable string

	// SourceCode identifies the partner hospital in imported records
	SourceCode string
}

// DefaultConfig returns default adapter configuration
func DefaultConfig() Config {
	return Config{
		Port:         1433,
		SSLMode:      "disable",
		PollInterval: 15 * time.Minute,
		DoctorTable:  "dbo.Physicians",
	}
}
