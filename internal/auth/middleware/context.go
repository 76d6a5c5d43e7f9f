package auth

import (
	"context"

	"github.com/mind-engage/examportal/internal/rbac"
)

type ctxKey string

const ctxKeySub ctxKey = "sub"

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   string
	Role string
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

func PrincipalFromContext(ctx context.Context) Principal {
	return Principal{ID: SubjectFromContext(ctx), Role: rbac.RoleFromContext(ctx)}
}
