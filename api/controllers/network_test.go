package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	networksvc "github.com/terravest/terravest-backend/internal/network"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
)

type stubNetworkReader struct {
	treeFn  func(ctx context.Context, memberID uuid.UUID, depth int) (*networksvc.TreeNode, error)
	statsFn func(ctx context.Context, memberID uuid.UUID) (*networksvc.TreeStats, error)
}

func (s stubNetworkReader) GetTree(ctx context.Context, memberID uuid.UUID, depth int) (*networksvc.TreeNode, error) {
	if s.treeFn != nil {
		return s.treeFn(ctx, memberID, depth)
	}
	return &networksvc.TreeNode{Member: &models.Member{ID: memberID}}, nil
}

func (s stubNetworkReader) GetStats(ctx context.Context, memberID uuid.UUID) (*networksvc.TreeStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx, memberID)
	}
	return &networksvc.TreeStats{MemberID: memberID}, nil
}

func TestNetworkTree(t *testing.T) {
	memberID := uuid.New()
	leftID := uuid.New()
	svc := stubNetworkReader{
		treeFn: func(ctx context.Context, id uuid.UUID, depth int) (*networksvc.TreeNode, error) {
			if depth != 2 {
				t.Fatalf("unexpected depth %d", depth)
			}
			return &networksvc.TreeNode{
				Member: &models.Member{ID: id, DisplayName: "root", Rank: enums.RankGold},
				Left: &networksvc.TreeNode{
					Member: &models.Member{ID: leftID, DisplayName: "left child", Depth: 1},
				},
			}, nil
		},
	}

	resp := httptest.NewRecorder()
	NetworkTree(svc, nil).ServeHTTP(resp, authedRequest(http.MethodGet, "/?depth=2", memberID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data treeNodeResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.MemberID != memberID {
		t.Fatalf("unexpected root %s", envelope.Data.MemberID)
	}
	if envelope.Data.Left == nil || envelope.Data.Left.MemberID != leftID {
		t.Fatalf("expected left child in tree")
	}
	if envelope.Data.Right != nil {
		t.Fatalf("unexpected right child")
	}
}

func TestNetworkTreeRejectsBadDepth(t *testing.T) {
	resp := httptest.NewRecorder()
	NetworkTree(stubNetworkReader{}, nil).ServeHTTP(resp, authedRequest(http.MethodGet, "/?depth=99", uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestNetworkStats(t *testing.T) {
	memberID := uuid.New()
	svc := stubNetworkReader{
		statsFn: func(ctx context.Context, id uuid.UUID) (*networksvc.TreeStats, error) {
			return &networksvc.TreeStats{
				MemberID:   id,
				LeftCount:  4,
				RightCount: 2,
				LeftBV:     decimal.RequireFromString("12000"),
				RightBV:    decimal.RequireFromString("8000"),
				PersonalBV: decimal.RequireFromString("1000"),
			}, nil
		},
	}

	resp := httptest.NewRecorder()
	NetworkStats(svc, nil).ServeHTTP(resp, authedRequest(http.MethodGet, "/", memberID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data networksvc.TreeStats `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.LeftCount != 4 || envelope.Data.RightCount != 2 {
		t.Fatalf("unexpected leg counts %+v", envelope.Data)
	}
}
