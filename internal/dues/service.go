package dues

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tableside-backend/pkg/pagination"
)

// MarkSettledInput reconciles one Due entry.
type MarkSettledInput struct {
	BranchCode string
	EntryID    uuid.UUID
	Method     enums.PaymentMethod
	Actor      *outbox.ActorRef
}

// HistoryQuery filters the payment history report.
type HistoryQuery struct {
	BranchCode string
	From       *time.Time
	To         *time.Time
	Search     string
	Status     *enums.PaymentStatus
	Limit      int
	Cursor     string
}

// HistoryPage is one page of the payment history plus totals for the whole
// filtered range.
type HistoryPage struct {
	Items      []Entry      `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
	Count      int          `json:"count"`
	Totals     MethodTotals `json:"totals"`
}

type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Outbox     outboxPublisher
	Logger     *logger.Logger
}

// Service answers dues queries and reconciles outstanding bills.
type Service interface {
	ListDue(ctx context.Context, branchCode string) ([]Entry, error)
	ListDueGrouped(ctx context.Context, branchCode string) ([]DueGroup, error)
	MarkSettled(ctx context.Context, input MarkSettledInput) (*Entry, error)
	History(ctx context.Context, query HistoryQuery) (*HistoryPage, error)
	Export(ctx context.Context, query HistoryQuery) ([]Entry, error)
}

type service struct {
	db     txRunner
	repo   Repository
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db runner is required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dues repository is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox publisher is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		db:     params.DB,
		repo:   params.Repository,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) ListDue(ctx context.Context, branchCode string) ([]Entry, error) {
	rows, err := s.repo.ListByStatus(ctx, branchCode, enums.PaymentStatusDue)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due entries")
	}
	return fromHistoryList(rows), nil
}

func (s *service) ListDueGrouped(ctx context.Context, branchCode string) ([]DueGroup, error) {
	entries, err := s.ListDue(ctx, branchCode)
	if err != nil {
		return nil, err
	}
	return GroupByResponsible(entries), nil
}

// MarkSettled records that a Due bill was paid. Entries that are already
// Settled are rejected rather than counted twice.
func (s *service) MarkSettled(ctx context.Context, input MarkSettledInput) (*Entry, error) {
	if strings.TrimSpace(input.BranchCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch code is required")
	}
	if !input.Method.IsValid() || input.Method == enums.PaymentMethodDue {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a collected payment method is required")
	}

	var updated Entry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		entry, err := repo.FindEntry(ctx, input.BranchCode, input.EntryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "history entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load history entry")
		}
		if entry.Payment.Status != enums.PaymentStatusDue {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "history entry is already settled")
		}
		if err := repo.MarkDueSettled(ctx, input.BranchCode, entry.ID, input.Method); err != nil {
			if errors.Is(err, ErrNotDue) {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "history entry is already settled")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle due entry")
		}

		method := input.Method
		entry.Payment.Status = enums.PaymentStatusSettled
		entry.Payment.Method = &method
		updated = FromHistory(*entry)

		event := outbox.DomainEvent{
			EventType:     enums.EventDueSettled,
			AggregateType: enums.AggregateHistoryEntry,
			AggregateID:   entry.ID,
			Actor:         input.Actor,
			Data: payloads.DueSettledEvent{
				HistoryEntryID:  entry.ID,
				TableID:         entry.TableID,
				BranchCode:      entry.BranchCode,
				Responsible:     entry.Payment.Responsible,
				DiscountedTotal: entry.Payment.EffectiveTotal(),
				Method:          method,
				SettledAt:       time.Now().UTC(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue due settled event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"branch_code":      input.BranchCode,
		"history_entry_id": input.EntryID.String(),
		"payment_method":   input.Method,
	})
	s.logg.Info(logCtx, "due entry settled")
	return &updated, nil
}

// History returns a page of the filtered payment history, newest first.
func (s *service) History(ctx context.Context, query HistoryQuery) (*HistoryPage, error) {
	entries, err := s.filtered(ctx, query)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{
		Count:  len(entries),
		Totals: AggregateTotalsByMethod(entries),
	}
	page.Items, page.NextCursor, err = pagination.Window(entries, query.Cursor, query.Limit, func(e Entry) pagination.Cursor {
		return pagination.Cursor{At: e.Timestamp, ID: e.EntryID}
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return page, nil
}

// Export returns every entry matching the filters, newest first.
func (s *service) Export(ctx context.Context, query HistoryQuery) ([]Entry, error) {
	return s.filtered(ctx, query)
}

func (s *service) filtered(ctx context.Context, query HistoryQuery) ([]Entry, error) {
	if query.From != nil && query.To != nil && dateOf(*query.From).After(dateOf(*query.To)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	var from, until *time.Time
	if query.From != nil {
		start := dateOf(*query.From)
		from = &start
	}
	if query.To != nil {
		end := dateOf(*query.To).AddDate(0, 0, 1)
		until = &end
	}
	rows, err := s.repo.ListBetween(ctx, query.BranchCode, from, until)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list history")
	}

	entries := FilterByDateRange(fromHistoryList(rows), query.From, query.To)
	entries = FilterBySearch(entries, query.Search)
	if query.Status != nil {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.Status == *query.Status {
				kept = append(kept, entry)
			}
		}
		entries = kept
	}
	SortNewestFirst(entries)
	return entries, nil
}
