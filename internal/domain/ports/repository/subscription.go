package repository

import (
	"context"
	"time"

	"exam-access/internal/domain/model"
)

// PremiumSubscriptionRepository is the port for premium subscriptions.
type PremiumSubscriptionRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.PremiumSubscription, error)
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.PremiumSubscription, error)
	// CreateRequest inserts an unapproved row; returns domain.ErrAlreadyExists if the user has one.
	CreateRequest(ctx context.Context, tx Tx, sub *model.PremiumSubscription) error
	Approve(ctx context.Context, tx Tx, id, approver string, expiresAt *time.Time, at time.Time) error
	Revoke(ctx context.Context, tx Tx, id string, at time.Time) error
	// Grant upserts an approved subscription for userID with the given expiry.
	Grant(ctx context.Context, tx Tx, userID, approver string, expiresAt time.Time, at time.Time) (*model.PremiumSubscription, error)
}
