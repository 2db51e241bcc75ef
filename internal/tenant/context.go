package tenant

import (
	"context"
	"errors"
)

// Key for tenant ID in context
type contextKey string

const (
	companyIDKey contextKey = "companyID"
	requestIDKey contextKey = "requestID"
	actorIDKey   contextKey = "actorID"
)

// ErrNoCompanyInContext is returned when no tenant ID is found in context
var ErrNoCompanyInContext = errors.New("no company ID found in context")

// ErrCompanyIDNotFound is returned when tenant ID is not found in context
var ErrCompanyIDNotFound = errors.New("company ID not found in context")

// WithCompanyID adds a tenant ID to the context
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyIDKey, companyID)
}

// FromContext extracts the tenant ID from the context
func FromContext(ctx context.Context) (string, error) {
	companyID, ok := ctx.Value(companyIDKey).(string)
	if !ok || companyID == "" {
		return "", ErrCompanyIDNotFound
	}
	return companyID, nil
}

// MustFromContext extracts the tenant ID from the context or panics
func MustFromContext(ctx context.Context) string {
	companyID, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return companyID
}

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FromRequestIDContext extracts the request ID from the context
func FromRequestIDContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}

// MustFromRequestIDContext extracts the request ID from the context or panics
func MustFromRequestIDContext(ctx context.Context) string {
	requestID, err := FromRequestIDContext(ctx)
	if err != nil {
		panic(err)
	}
	return requestID
}

// WithActorID adds the acting user's ID to the context. Lifecycle mutations
// driven by operators carry it through to audit entries; system-driven
// mutations leave it unset.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorFromContext extracts the acting user's ID from the context. The second
// return value reports whether an actor was present.
func ActorFromContext(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorIDKey).(string)
	if !ok || actorID == "" {
		return "", false
	}
	return actorID, true
}
