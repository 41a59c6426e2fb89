package auth

import (
	"context"
	"strings"
)

type ctxKey string

const subjectKey ctxKey = "auth_subject"

// ContextWithSubject stores the authenticated subject (email) in the context.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, strings.TrimSpace(subject))
}

// SubjectFromContext extracts the authenticated subject from the context.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(subjectKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
