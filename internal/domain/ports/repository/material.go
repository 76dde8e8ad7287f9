package repository

import (
	"context"

	"exam-access/internal/domain/model"
)

// MaterialRepository reads the externally owned catalog.
type MaterialRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Material, error)
}

// RoleRepository resolves roles from the externally owned identity store.
type RoleRepository interface {
	RoleOf(ctx context.Context, userID string) (model.Role, error)
}
