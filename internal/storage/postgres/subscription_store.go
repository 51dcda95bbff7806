package postgres

import (
	"context"
	"fmt"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// SubscriptionStore implements news.SubscriptionStore on Postgres.
// Preference CRUD belongs to another service; only the digest query
// contract is consumed here. It assumes tables like:
//
//	CREATE TABLE users (
//	    id BIGSERIAL PRIMARY KEY,
//	    email TEXT NOT NULL UNIQUE
//	);
//	CREATE TABLE user_preferences (
//	    user_id BIGINT PRIMARY KEY REFERENCES users (id),
//	    digest_enabled BOOLEAN NOT NULL DEFAULT FALSE,
//	    digest_time TEXT,
//	    preferred_categories TEXT[],
//	    preferred_sources TEXT[]
//	);
type SubscriptionStore struct {
	pool dbPool
}

// NewSubscriptionStore wraps an existing pool.
func NewSubscriptionStore(pool dbPool) (*SubscriptionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SubscriptionStore{pool: pool}, nil
}

// DueDigests returns enabled subscriptions whose digest time equals the
// given "HH:MM" minute.
func (s *SubscriptionStore) DueDigests(ctx context.Context, minute string) ([]news.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.email, p.digest_time, p.preferred_categories, p.preferred_sources
         FROM user_preferences p
         JOIN users u ON u.id = p.user_id
         WHERE p.digest_enabled AND p.digest_time = $1
         ORDER BY u.id`, minute)
	if err != nil {
		return nil, fmt.Errorf("select due digests: %w", err)
	}
	defer rows.Close()

	var subs []news.Subscription
	for rows.Next() {
		var sub news.Subscription
		if err := rows.Scan(
			&sub.UserID, &sub.Email, &sub.DigestTime, &sub.Categories, &sub.Sources,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
