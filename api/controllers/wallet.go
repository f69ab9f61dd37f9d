package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/api/middleware"
	"github.com/terravest/terravest-backend/api/responses"
	"github.com/terravest/terravest-backend/api/validators"
	"github.com/terravest/terravest-backend/pkg/db/models"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// WalletReader is the read surface of the wallet service used by the API.
type WalletReader interface {
	GetBalance(ctx context.Context, memberID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, *pagination.Cursor, error)
}

type walletBalanceResponse struct {
	MemberID         uuid.UUID       `json:"memberId"`
	Commission       decimal.Decimal `json:"commission"`
	RentalIncome     decimal.Decimal `json:"rentalIncome"`
	ROI              decimal.Decimal `json:"roi"`
	Locked           decimal.Decimal `json:"locked"`
	TotalWithdrawn   decimal.Decimal `json:"totalWithdrawn"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type walletTransactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Bucket        string          `json:"bucket"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Reference     string          `json:"reference"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type walletTransactionList struct {
	Items      []walletTransactionResponse `json:"items"`
	NextCursor string                      `json:"next_cursor,omitempty"`
}

// WalletBalance returns the authenticated member's bucket balances.
func WalletBalance(svc WalletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		memberID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.GetBalance(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, walletBalanceResponse{
			MemberID:         wallet.MemberID,
			Commission:       wallet.CommissionBalance,
			RentalIncome:     wallet.RentalIncomeBalance,
			ROI:              wallet.ROIBalance,
			Locked:           wallet.LockedBalance,
			TotalWithdrawn:   wallet.TotalWithdrawn,
			AvailableBalance: wallet.AvailableBalance(),
			UpdatedAt:        wallet.UpdatedAt,
		})
	}
}

// WalletTransactions returns the member's append-only ledger, newest first.
func WalletTransactions(svc WalletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
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

		transactions, next, err := svc.ListTransactions(r.Context(), memberID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list := walletTransactionList{Items: make([]walletTransactionResponse, 0, len(transactions))}
		for _, txn := range transactions {
			list.Items = append(list.Items, walletTransactionResponse{
				ID:            txn.ID,
				Type:          string(txn.Type),
				Bucket:        string(txn.Bucket),
				Amount:        txn.Amount,
				BalanceBefore: txn.BalanceBefore,
				BalanceAfter:  txn.BalanceAfter,
				Reference:     txn.Reference,
				Description:   txn.Description,
				CreatedAt:     txn.CreatedAt,
			})
		}
		if next != nil {
			list.NextCursor = pagination.EncodeCursor(*next)
		}

		responses.WriteSuccess(w, list)
	}
}

// authedMemberID resolves the caller's member id from the auth context.
func authedMemberID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.MemberIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "member context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid member id")
	}
	return id, nil
}

// listParams reads the shared limit and cursor query parameters.
func listParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
