package notification

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/types"
)

// SubscriptionStore persists push subscriptions in Postgres. Subscriptions
// survive restarts; re-registering the same endpoint refreshes the keys.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewSubscriptionStore creates a new subscription store
func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{pool: pool}
}

// Save upserts a subscription keyed by (user_id, endpoint)
func (s *SubscriptionStore) Save(ctx context.Context, sub *PushSubscription) error {
	if sub.ID.IsZero() {
		sub.ID = types.NewID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO notifications.push_subscriptions (id, user_id, user_type, endpoint, p256dh_key, auth_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET
			p256dh_key = EXCLUDED.p256dh_key,
			auth_key = EXCLUDED.auth_key`

	_, err := s.pool.Exec(ctx, query,
		sub.ID, sub.UserID, sub.UserType, sub.Endpoint, sub.P256DHKey, sub.AuthKey, sub.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to save push subscription")
	}

	return nil
}

// ListByUser returns all subscriptions for a user
func (s *SubscriptionStore) ListByUser(ctx context.Context, userID types.ID) ([]PushSubscription, error) {
	query := `
		SELECT id, user_id, user_type, endpoint, p256dh_key, auth_key, created_at
		FROM notifications.push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list push subscriptions")
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var sub PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.UserType, &sub.Endpoint, &sub.P256DHKey, &sub.AuthKey, &sub.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan push subscription")
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// Delete removes a subscription by user and endpoint
func (s *SubscriptionStore) Delete(ctx context.Context, userID types.ID, endpoint string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications.push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
		userID, endpoint)
	if err != nil {
		return errors.Wrap(err, "failed to delete push subscription")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("push subscription", endpoint)
	}

	return nil
}
