package controllers

import (
	"context"
	"net/http"
	"strings"

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

// PayoutResolver is the admin-facing slice of the payout service.
type PayoutResolver interface {
	ListQueue(ctx context.Context, filter payoutsvc.QueueFilter, params pagination.Params) ([]models.PayoutRequest, *pagination.Cursor, error)
	Approve(ctx context.Context, input payoutsvc.DecisionInput) (*models.PayoutRequest, error)
	Reject(ctx context.Context, input payoutsvc.DecisionInput) (*models.PayoutRequest, error)
	MarkPaid(ctx context.Context, input payoutsvc.PaidInput) (*models.PayoutRequest, error)
	AdjustAmount(ctx context.Context, input payoutsvc.AdjustInput) (*models.PayoutRequest, error)
}

// AdminPayoutQueue lists withdrawal requests for review, optionally
// narrowed by status and member.
func AdminPayoutQueue(svc PayoutResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter payoutsvc.QueueFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParsePayoutStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid payout status"))
				return
			}
			filter.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("memberID")); raw != "" {
			memberID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid member id"))
				return
			}
			filter.MemberID = &memberID
		}

		requests, next, err := svc.ListQueue(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPayoutList(requests, next))
	}
}

type resolvePayoutRequest struct {
	Decision      string `json:"decision" validate:"required,oneof=APPROVE REJECT MARK_PAID"`
	TransactionID string `json:"transactionID"`
	Remarks       string `json:"remarks"`
}

// AdminPayoutResolve applies an admin decision to a withdrawal request.
func AdminPayoutResolve(svc PayoutResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		adminID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payoutID, err := uuid.Parse(chi.URLParam(r, "payoutID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id"))
			return
		}

		var payload resolvePayoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var request *models.PayoutRequest
		switch strings.ToUpper(payload.Decision) {
		case "APPROVE":
			request, err = svc.Approve(r.Context(), payoutsvc.DecisionInput{
				PayoutID: payoutID,
				AdminID:  adminID,
				Remarks:  validators.SanitizeString(payload.Remarks, 500),
			})
		case "REJECT":
			request, err = svc.Reject(r.Context(), payoutsvc.DecisionInput{
				PayoutID: payoutID,
				AdminID:  adminID,
				Remarks:  validators.SanitizeString(payload.Remarks, 500),
			})
		case "MARK_PAID":
			request, err = svc.MarkPaid(r.Context(), payoutsvc.PaidInput{
				PayoutID:      payoutID,
				AdminID:       adminID,
				TransactionID: payload.TransactionID,
			})
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "unknown payout decision")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPayoutResponse(request))
	}
}

type adjustPayoutRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Remarks string          `json:"remarks"`
}

// AdminPayoutAdjust changes the requested amount while the request is
// still under review.
func AdminPayoutAdjust(svc PayoutResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		adminID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payoutID, err := uuid.Parse(chi.URLParam(r, "payoutID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id"))
			return
		}

		var payload adjustPayoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.AdjustAmount(r.Context(), payoutsvc.AdjustInput{
			PayoutID:  payoutID,
			NewAmount: payload.Amount,
			AdminID:   adminID,
			Remarks:   validators.SanitizeString(payload.Remarks, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPayoutResponse(request))
	}
}
