package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/api/responses"
	"github.com/terravest/terravest-backend/pkg/db/models"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// CommissionLister exposes commission history reads to the API.
type CommissionLister interface {
	ListEntries(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.CommissionEntry, *pagination.Cursor, error)
}

type commissionEntryResponse struct {
	ID             uuid.UUID       `json:"id"`
	Type           string          `json:"type"`
	Level          int             `json:"level"`
	SourceMemberID *uuid.UUID      `json:"sourceMemberId,omitempty"`
	SourceEventID  string          `json:"sourceEventId"`
	BaseAmount     decimal.Decimal `json:"baseAmount"`
	Rate           decimal.Decimal `json:"rate"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type commissionEntryList struct {
	Items      []commissionEntryResponse `json:"items"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

// CommissionList returns the member's commission history, newest first.
func CommissionList(svc CommissionLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		memberID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, next, err := svc.ListEntries(r.Context(), memberID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list := commissionEntryList{Items: make([]commissionEntryResponse, 0, len(entries))}
		for _, entry := range entries {
			list.Items = append(list.Items, commissionEntryResponse{
				ID:             entry.ID,
				Type:           string(entry.Type),
				Level:          entry.Level,
				SourceMemberID: entry.SourceMemberID,
				SourceEventID:  entry.SourceEventID,
				BaseAmount:     entry.BaseAmount,
				Rate:           entry.Rate,
				Amount:         entry.Amount,
				Description:    entry.Description,
				CreatedAt:      entry.CreatedAt,
			})
		}
		if next != nil {
			list.NextCursor = pagination.EncodeCursor(*next)
		}

		responses.WriteSuccess(w, list)
	}
}
