package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/api/responses"
	"github.com/terravest/terravest-backend/api/validators"
	networksvc "github.com/terravest/terravest-backend/internal/network"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
)

const defaultTreeDepth = 3

// NetworkReader exposes genealogy reads to the API.
type NetworkReader interface {
	GetTree(ctx context.Context, memberID uuid.UUID, depth int) (*networksvc.TreeNode, error)
	GetStats(ctx context.Context, memberID uuid.UUID) (*networksvc.TreeStats, error)
}

type treeNodeResponse struct {
	MemberID     uuid.UUID         `json:"memberId"`
	DisplayName  string            `json:"displayName"`
	ReferralCode string            `json:"referralCode"`
	Rank         string            `json:"rank"`
	Depth        int               `json:"depth"`
	IsActive     bool              `json:"isActive"`
	LeftBV       decimal.Decimal   `json:"leftBv"`
	RightBV      decimal.Decimal   `json:"rightBv"`
	PersonalBV   decimal.Decimal   `json:"personalBv"`
	JoinedAt     time.Time         `json:"joinedAt"`
	Left         *treeNodeResponse `json:"left,omitempty"`
	Right        *treeNodeResponse `json:"right,omitempty"`
}

func newTreeNodeResponse(node *networksvc.TreeNode) *treeNodeResponse {
	if node == nil || node.Member == nil {
		return nil
	}
	return &treeNodeResponse{
		MemberID:     node.Member.ID,
		DisplayName:  node.Member.DisplayName,
		ReferralCode: node.Member.ReferralCode,
		Rank:         string(node.Member.Rank),
		Depth:        node.Member.Depth,
		IsActive:     node.Member.IsActive,
		LeftBV:       node.Member.LeftBV,
		RightBV:      node.Member.RightBV,
		PersonalBV:   node.Member.PersonalBV,
		JoinedAt:     node.Member.CreatedAt,
		Left:         newTreeNodeResponse(node.Left),
		Right:        newTreeNodeResponse(node.Right),
	}
}

// NetworkTree returns the member's downline up to the requested depth.
func NetworkTree(svc NetworkReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "network service unavailable"))
			return
		}

		memberID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		depth, err := validators.ParseQueryInt(r, "depth", defaultTreeDepth, 1, networksvc.MaxTreeDepth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tree, err := svc.GetTree(r.Context(), memberID, depth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTreeNodeResponse(tree))
	}
}

// NetworkStats returns leg counts and business volume for both legs.
func NetworkStats(svc NetworkReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "network service unavailable"))
			return
		}

		memberID, err := authedMemberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.GetStats(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}
