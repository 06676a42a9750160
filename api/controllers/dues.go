package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/tableside-backend/api/responses"
	"github.com/angelmondragon/tableside-backend/api/validators"
	"github.com/angelmondragon/tableside-backend/internal/dues"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/pagination"
)

const (
	duesModeFlat    = "flat"
	duesModeGrouped = "grouped"
)

// DuesList returns outstanding Due entries, flat or grouped by responsible.
func DuesList(svc dues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("mode")))
		switch mode {
		case "", duesModeFlat:
			entries, err := svc.ListDue(r.Context(), branch)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, entries)
		case duesModeGrouped:
			groups, err := svc.ListDueGrouped(r.Context(), branch)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, groups)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "mode must be flat or grouped").WithDetails(map[string]any{"field": "mode"}))
		}
	}
}

type markDueSettledRequest struct {
	Method string `json:"method" validate:"required"`
}

// DueSettle records that a Due bill has been paid.
func DueSettle(svc dues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload markDueSettledRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := parseMethod(&payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.MarkSettled(r.Context(), dues.MarkSettledInput{
			BranchCode: branch,
			EntryID:    entryID,
			Method:     *method,
			Actor:      actorFrom(r, branch),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func parseHistoryQuery(r *http.Request, branch string) (dues.HistoryQuery, error) {
	query := dues.HistoryQuery{
		BranchCode: branch,
		Search:     validators.SanitizeString(r.URL.Query().Get("search"), 128),
		Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	var err error
	if query.From, err = validators.ParseQueryDate(r, "from"); err != nil {
		return query, err
	}
	if query.To, err = validators.ParseQueryDate(r, "to"); err != nil {
		return query, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return query, err
		}
		query.Status = &status
	}
	if query.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
		return query, err
	}
	return query, nil
}

// HistoryList pages through settled and due history with per-method totals.
func HistoryList(svc dues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query, err := parseHistoryQuery(r, branch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.History(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// HistoryExport downloads the filtered history as CSV.
func HistoryExport(svc dues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query, err := parseHistoryQuery(r, branch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.Export(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("history-%s-%s.csv", branch, time.Now().UTC().Format("20060102"))
		responses.WriteCSV(r.Context(), logg, w, filename, func(buf *bytes.Buffer) error {
			return dues.ExportHistoryCSV(buf, entries)
		})
	}
}

