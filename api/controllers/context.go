package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/api/middleware"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
)

// currentBranch is the branch every handler scopes its reads and writes to.
func currentBranch(r *http.Request) (string, error) {
	branch := middleware.BranchCodeFromContext(r.Context())
	if branch == "" {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
	}
	return branch, nil
}

func actorFrom(r *http.Request, branch string) *outbox.ActorRef {
	actor := &outbox.ActorRef{BranchCode: branch}
	if staff, ok := middleware.StaffFromContext(r.Context()); ok {
		actor.Role = staff.Role
		if staff.UserID != uuid.Nil {
			id := staff.UserID
			actor.UserID = &id
		}
	}
	return actor
}

func parseMethod(raw *string) (*enums.PaymentMethod, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	method, err := enums.ParsePaymentMethod(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").WithDetails(map[string]any{"field": "method"})
	}
	return &method, nil
}
