package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/api/middleware"
	"github.com/angelmondragon/tableside-backend/api/responses"
	"github.com/angelmondragon/tableside-backend/api/validators"
	"github.com/angelmondragon/tableside-backend/internal/settlement"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

// attemptNamespace derives settlement attempt ids from non-UUID idempotency keys.
var attemptNamespace = uuid.MustParse("8f0c6a4e-5b7d-4f7e-9a51-2f4d3c1b9e60")

type settleRequest struct {
	AttemptID          *string          `json:"attemptId,omitempty" validate:"omitempty,uuid"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	Method             *string          `json:"method,omitempty"`
	Status             string           `json:"status" validate:"required"`
	Responsible        string           `json:"responsible,omitempty" validate:"max=128"`
}

func (p settleRequest) discount() decimal.Decimal {
	if p.DiscountPercentage == nil {
		return decimal.Zero
	}
	return *p.DiscountPercentage
}

func parseStatus(raw string) (enums.PaymentStatus, error) {
	status, err := enums.ParsePaymentStatus(strings.TrimSpace(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status").WithDetails(map[string]any{"field": "status"})
	}
	return status, nil
}

// attemptID prefers the body's attemptId, then the Idempotency-Key header.
func attemptID(r *http.Request, branch string, payload settleRequest) (*uuid.UUID, error) {
	if payload.AttemptID != nil {
		return parseOptionalUUID(*payload.AttemptID)
	}
	key := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
	if key == "" {
		return nil, nil
	}
	if id, err := uuid.Parse(key); err == nil {
		return &id, nil
	}
	id := uuid.NewSHA1(attemptNamespace, []byte(branch+"|"+key))
	return &id, nil
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier")
	}
	return &id, nil
}

// TableSettle closes the table with a Settled or Due payment.
func TableSettle(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableID, err := validators.ParseUUIDParam(r, "tableId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload settleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := parseStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := parseMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attempt, err := attemptID(r, branch, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Settle(r.Context(), settlement.SettleInput{
			BranchCode:         branch,
			TableID:            tableID,
			AttemptID:          attempt,
			DiscountPercentage: payload.discount(),
			Method:             method,
			Status:             status,
			Responsible:        payload.Responsible,
			Actor:              actorFrom(r, branch),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := http.StatusCreated
		if result.Replayed {
			code = http.StatusOK
		}
		responses.WriteSuccessStatus(w, code, result)
	}
}

// TableBill renders the printable bill without settling.
func TableBill(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableID, err := validators.ParseUUIDParam(r, "tableId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload settleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := parseStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := parseMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.Preview(r.Context(), settlement.PreviewInput{
			BranchCode:         branch,
			TableID:            tableID,
			DiscountPercentage: payload.discount(),
			Method:             method,
			Status:             status,
			Responsible:        payload.Responsible,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bill)
	}
}
