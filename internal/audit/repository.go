package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/metrics"
	"github.com/doctorry/platform/internal/shared/types"
)

// Repository provides append-only audit log operations
type Repository struct {
	pool     *pgxpool.Pool
	mu       sync.Mutex
	lastHash string
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Initialize loads the chain head from the database
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT hash FROM audit.entries
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&hash)

	if err != nil && !strings.Contains(err.Error(), "no rows") {
		return errors.Wrap(err, "failed to get last audit hash")
	}

	r.lastHash = hash
	return nil
}

// Append appends a new entry to the chain (thread-safe)
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.PrevHash = r.lastHash
	entry.Hash = entry.calculateHash()

	changesJSON, err := json.Marshal(entry.Changes)
	if err != nil {
		return errors.Wrap(err, "failed to marshal changes")
	}

	query := `
		INSERT INTO audit.entries (
			id, timestamp, hash, prev_hash,
			actor_type, actor_id,
			action, resource_type, resource_id,
			changes, correlation_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING sequence`

	err = r.pool.QueryRow(ctx, query,
		entry.ID, entry.Timestamp, entry.Hash, entry.PrevHash,
		entry.ActorType, entry.ActorID,
		entry.Action, entry.ResourceType, nullable(entry.ResourceID),
		changesJSON, nullable(entry.CorrelationID),
	).Scan(&entry.Sequence)

	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	r.lastHash = entry.Hash
	metrics.RecordAuditEntry()

	return nil
}

// List lists audit entries with filters, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argNum := 0

	add := func(cond string, val any) {
		argNum++
		conditions = append(conditions, fmt.Sprintf(cond, argNum))
		args = append(args, val)
	}

	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.ActorType != nil {
		add("actor_type = $%d", *filter.ActorType)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if filter.StartTime != nil {
		add("timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("timestamp <= $%d", *filter.EndTime)
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit.entries WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit entries")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT sequence, id, timestamp, hash, prev_hash,
			actor_type, actor_id, action, resource_type, resource_id,
			changes, correlation_id
		FROM audit.entries
		WHERE %s
		ORDER BY sequence DESC
		LIMIT %d OFFSET %d`, where, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, *entry)
	}

	return entries, total, rows.Err()
}

// GetByResource returns the audit trail of a single resource
func (r *Repository) GetByResource(ctx context.Context, resourceType string, resourceID types.ID, limit int) ([]Entry, error) {
	entries, _, err := r.List(ctx, ListFilter{
		ResourceType: resourceType,
		ResourceID:   resourceID.String(),
		Limit:        limit,
	})
	return entries, err
}

// VerifyResult reports the outcome of a chain verification
type VerifyResult struct {
	Valid         bool   `json:"valid"`
	EntriesWalked int    `json:"entries_walked"`
	BrokenAt      *int64 `json:"broken_at,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// VerifyChain walks the chain oldest-first and checks both the per-entry
// hash and the prev_hash links. A zero limit walks the whole chain.
func (r *Repository) VerifyChain(ctx context.Context, limit int) (*VerifyResult, error) {
	query := `
		SELECT sequence, id, timestamp, hash, prev_hash,
			actor_type, actor_id, action, resource_type, resource_id,
			changes, correlation_id
		FROM audit.entries
		ORDER BY sequence`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit chain")
	}
	defer rows.Close()

	result := &VerifyResult{Valid: true}
	prevHash := ""
	first := true

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		result.EntriesWalked++

		if !first && entry.PrevHash != prevHash {
			result.Valid = false
			result.BrokenAt = &entry.Sequence
			result.Reason = "prev_hash does not match preceding entry"
			return result, nil
		}
		if !entry.VerifyHash() {
			result.Valid = false
			result.BrokenAt = &entry.Sequence
			result.Reason = "entry hash does not match entry contents"
			return result, nil
		}

		prevHash = entry.Hash
		first = false
	}

	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var resourceID, correlationID *string
	var changesJSON []byte

	err := row.Scan(
		&e.Sequence, &e.ID, &e.Timestamp, &e.Hash, &e.PrevHash,
		&e.ActorType, &e.ActorID, &e.Action, &e.ResourceType, &resourceID,
		&changesJSON, &correlationID,
	)
	if err != nil {
		return nil, err
	}

	if resourceID != nil {
		e.ResourceID = *resourceID
	}
	if correlationID != nil {
		e.CorrelationID = *correlationID
	}
	if len(changesJSON) > 0 {
		_ = json.Unmarshal(changesJSON, &e.Changes)
	}

	return &e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
