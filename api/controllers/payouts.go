package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/api/responses"
	"github.com/terravest/terravest-backend/api/validators"
	payoutsvc "github.com/terravest/terravest-backend/internal/payout"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// PayoutRequester is the member-facing slice of the payout service.
type PayoutRequester interface {
	RequestPayout(ctx context.Context, input payoutsvc.RequestInput) (*models.PayoutRequest, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	ListByMember(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, *pagination.Cursor, error)
}

type payoutResponse struct {
	ID              uuid.UUID       `json:"id"`
	MemberID        uuid.UUID       `json:"memberId"`
	Status          string          `json:"status"`
	Method          string          `json:"method"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	AdminCharge     decimal.Decimal `json:"adminCharge"`
	TDSAmount       decimal.Decimal `json:"tdsAmount"`
	NetAmount       decimal.Decimal `json:"netAmount"`
	AccountDetails  string          `json:"accountDetails"`
	Remarks         *string         `json:"remarks,omitempty"`
	TransactionID   *string         `json:"transactionId,omitempty"`
	DecidedAt       *time.Time      `json:"decidedAt,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type payoutList struct {
	Items      []payoutResponse `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func newPayoutResponse(request *models.PayoutRequest) payoutResponse {
	return payoutResponse{
		ID:              request.ID,
		MemberID:        request.MemberID,
		Status:          string(request.Status),
		Method:          string(request.Method),
		RequestedAmount: request.RequestedAmount,
		AdminCharge:     request.AdminCharge,
		TDSAmount:       request.TDSAmount,
		NetAmount:       request.NetAmount,
		AccountDetails:  request.AccountDetails,
		Remarks:         request.Remarks,
		TransactionID:   request.TransactionID,
		DecidedAt:       request.DecidedAt,
		PaidAt:          request.PaidAt,
		CreatedAt:       request.CreatedAt,
	}
}

func newPayoutList(requests []models.PayoutRequest, next *pagination.Cursor) payoutList {
	list := payoutList{Items: make([]payoutResponse, 0, len(requests))}
	for i := range requests {
		list.Items = append(list.Items, newPayoutResponse(&requests[i]))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list
}

type createPayoutRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Method         string          `json:"method" validate:"required"`
	AccountDetails string          `json:"accountDetails" validate:"required"`
}

// PayoutCreate debits the member's wallet and opens a withdrawal request.
func PayoutCreate(svc PayoutRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		memberID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPayoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePayoutMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout method"))
			return
		}

		request, err := svc.RequestPayout(r.Context(), payoutsvc.RequestInput{
			MemberID:       memberID,
			Amount:         payload.Amount,
			Method:         method,
			AccountDetails: validators.SanitizeString(payload.AccountDetails, 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPayoutResponse(request))
	}
}

// PayoutList returns the member's withdrawal history, newest first.
func PayoutList(svc PayoutRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
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

		requests, next, err := svc.ListByMember(r.Context(), memberID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPayoutList(requests, next))
	}
}

// PayoutDetail returns one of the member's own withdrawal requests.
// Requests owned by other members read as not found.
func PayoutDetail(svc PayoutRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		memberID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payoutID, err := uuid.Parse(chi.URLParam(r, "payoutID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id"))
			return
		}

		request, err := svc.GetPayout(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if request.MemberID != memberID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found"))
			return
		}

		responses.WriteSuccess(w, newPayoutResponse(request))
	}
}
