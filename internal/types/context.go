package types

import (
	"context"
	"fmt"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxInstitutionID ContextKey = "ctx_institution_id"
	CtxUserID        ContextKey = "ctx_user_id"
	CtxTxHandle      ContextKey = "ctx_tx_handle"

	// Default values
	DefaultInstitutionID = "00000000-0000-0000-0000-000000000000"
	DefaultUserID        = "00000000-0000-0000-0000-000000000000"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetInstitutionID(ctx context.Context) string {
	if institutionID, ok := ctx.Value(CtxInstitutionID).(string); ok {
		return institutionID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// SetInstitutionID sets the institution ID in the context
func SetInstitutionID(ctx context.Context, institutionID string) context.Context {
	return context.WithValue(ctx, CtxInstitutionID, institutionID)
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// ValidateInstitutionContext validates that the required institution context fields are present
func ValidateInstitutionContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context is nil")
	}

	if GetInstitutionID(ctx) == "" {
		return fmt.Errorf("no institution context found in context")
	}

	return nil
}
