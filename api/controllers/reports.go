package controllers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/tableside-backend/api/responses"
	"github.com/angelmondragon/tableside-backend/api/validators"
	"github.com/angelmondragon/tableside-backend/internal/reports"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

// ReportService builds the branch orders report.
type ReportService interface {
	OrdersReport(ctx context.Context, branchCode string, filter reports.Filter) (*reports.OrdersReport, error)
	ExportOrders(ctx context.Context, branchCode string, filter reports.Filter, w io.Writer) error
}

// parseReportFilter reads the optional from, to and search query parameters.
func parseReportFilter(r *http.Request) (reports.Filter, error) {
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return reports.Filter{}, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return reports.Filter{}, err
	}
	return reports.Filter{
		From:   from,
		To:     to,
		Search: validators.SanitizeString(r.URL.Query().Get("search"), 128),
	}, nil
}

func OrdersReport(svc ReportService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseReportFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.OrdersReport(r.Context(), branch, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// OrdersExport downloads running and settled order lines as CSV.
func OrdersExport(svc ReportService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseReportFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("orders-%s-%s.csv", branch, time.Now().UTC().Format("20060102"))
		responses.WriteCSV(r.Context(), logg, w, filename, func(buf *bytes.Buffer) error {
			return svc.ExportOrders(r.Context(), branch, filter, buf)
		})
	}
}
