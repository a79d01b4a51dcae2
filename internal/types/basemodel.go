package types

import (
	"context"
	"time"
)

// BaseModel is a base model for all domain models that need to be persisted
// by the host. Any changes here must be reflected in the host schema.
type BaseModel struct {
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Status        Status    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	UpdatedBy     string    `db:"updated_by" json:"updated_by"`
}

func GetDefaultBaseModel(ctx context.Context) BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		InstitutionID: GetInstitutionID(ctx),
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     GetUserID(ctx),
		UpdatedBy:     GetUserID(ctx),
	}
}
