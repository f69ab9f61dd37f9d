package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/terravest/terravest-backend/pkg/db"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
)

// Service maintains binary placement and BV rollups. Placement is permanent:
// once a member holds a slot it is never re-parented.
type Service interface {
	PlaceMember(ctx context.Context, tx *gorm.DB, input PlaceMemberInput) (*models.Member, error)
	// RecordVolume adds amount to the member's own volume and rolls it up
	// into leftBV/rightBV of every ancestor. Non-positive amounts are a
	// no-op. Callers de-duplicate by event id.
	RecordVolume(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount decimal.Decimal) error
	// MatchAndCarry consumes min(leftBV, rightBV) from both legs and
	// returns it; the remainder stays on the larger leg as carry-forward.
	MatchAndCarry(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (decimal.Decimal, error)
	GetMember(ctx context.Context, memberID uuid.UUID) (*models.Member, error)
	GetTree(ctx context.Context, memberID uuid.UUID, depth int) (*TreeNode, error)
	GetStats(ctx context.Context, memberID uuid.UUID) (*TreeStats, error)
	VerifyIntegrity(ctx context.Context) ([]string, error)
}

// PlaceMemberInput captures a registration to be placed in the tree.
// SponsorID of uuid.Nil bootstraps the root; exactly one root may exist.
type PlaceMemberInput struct {
	MemberID     uuid.UUID
	ReferralCode string
	DisplayName  string
	SponsorID    uuid.UUID
	Preference   enums.PlacementPreference
}

// TreeNode is one node of a genealogy view.
type TreeNode struct {
	Member *models.Member `json:"member"`
	Left   *TreeNode      `json:"left,omitempty"`
	Right  *TreeNode      `json:"right,omitempty"`
}

// TreeStats summarizes a member's two legs.
type TreeStats struct {
	MemberID   uuid.UUID       `json:"memberId"`
	LeftCount  int64           `json:"leftCount"`
	RightCount int64           `json:"rightCount"`
	LeftBV     decimal.Decimal `json:"leftBv"`
	RightBV    decimal.Decimal `json:"rightBv"`
	PersonalBV decimal.Decimal `json:"personalBv"`
}

type service struct {
	repo Repository
}

// NewService wires a tree service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("network repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) PlaceMember(ctx context.Context, tx *gorm.DB, input PlaceMemberInput) (*models.Member, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.ReferralCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code is required")
	}
	if !input.Preference.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid placement preference %q", input.Preference))
	}

	repo := s.repo.WithTx(tx)

	memberID := input.MemberID
	if memberID == uuid.Nil {
		memberID = uuid.New()
	}

	if input.SponsorID == uuid.Nil {
		return s.placeRoot(ctx, repo, memberID, input)
	}

	// Locking the sponsor row serializes concurrent placements under the
	// same sponsor; the unique slot index catches races across sponsors.
	sponsor, err := repo.GetByIDForUpdate(ctx, input.SponsorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sponsor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sponsor")
	}

	parent := sponsor
	side, explicit := input.Preference.Side()
	if explicit {
		if childID(parent, side) != nil {
			return nil, pkgerrors.New(pkgerrors.CodePlacementConflict, "placement slot already occupied").
				WithDetails(map[string]any{"sponsorId": sponsor.ID.String(), "side": side.String()})
		}
	} else {
		parent, side, err = s.findOpenSlot(ctx, repo, sponsor)
		if err != nil {
			return nil, err
		}
		if parent.ID != sponsor.ID {
			if parent, err = repo.GetByIDForUpdate(ctx, parent.ID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock placement parent")
			}
			if childID(parent, side) != nil {
				return nil, pkgerrors.New(pkgerrors.CodePlacementConflict, "placement slot already occupied").
					WithDetails(map[string]any{"parentId": parent.ID.String(), "side": side.String()})
			}
		}
	}

	member := &models.Member{
		ID:                memberID,
		ReferralCode:      input.ReferralCode,
		DisplayName:       input.DisplayName,
		SponsorID:         &sponsor.ID,
		PlacementParentID: &parent.ID,
		PlacementSide:     &side,
		Depth:             parent.Depth + 1,
		Rank:              enums.RankAssociate,
	}
	if err := repo.Create(ctx, member); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_members_placement_slot") {
			return nil, pkgerrors.New(pkgerrors.CodePlacementConflict, "placement slot already occupied").
				WithDetails(map[string]any{"parentId": parent.ID.String(), "side": side.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member")
	}

	setChildID(parent, side, &member.ID)
	if err := repo.Save(ctx, parent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update parent child pointer")
	}
	return member, nil
}

func (s *service) placeRoot(ctx context.Context, repo Repository, memberID uuid.UUID, input PlaceMemberInput) (*models.Member, error) {
	if _, err := repo.GetRoot(ctx); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "root member already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check root")
	}

	member := &models.Member{
		ID:           memberID,
		ReferralCode: input.ReferralCode,
		DisplayName:  input.DisplayName,
		Rank:         enums.RankAssociate,
	}
	if err := repo.Create(ctx, member); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create root member")
	}
	return member, nil
}

// findOpenSlot walks breadth-first from the sponsor. At every node the leg
// with lower subtree BV is tried first, ties break LEFT, which keeps a fixed
// AUTO placement sequence fully deterministic.
func (s *service) findOpenSlot(ctx context.Context, repo Repository, sponsor *models.Member) (*models.Member, enums.PlacementSide, error) {
	queue := []*models.Member{sponsor}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		sides := []enums.PlacementSide{enums.PlacementSideLeft, enums.PlacementSideRight}
		if node.RightBV.LessThan(node.LeftBV) {
			sides = []enums.PlacementSide{enums.PlacementSideRight, enums.PlacementSideLeft}
		}
		childIDs := make([]uuid.UUID, 0, 2)
		for _, side := range sides {
			id := childID(node, side)
			if id == nil {
				return node, side, nil
			}
			childIDs = append(childIDs, *id)
		}

		children, err := repo.ListByIDs(ctx, childIDs)
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load placement children")
		}
		byID := make(map[uuid.UUID]*models.Member, len(children))
		for i := range children {
			byID[children[i].ID] = &children[i]
		}
		for _, id := range childIDs {
			child, ok := byID[id]
			if !ok {
				return nil, "", pkgerrors.New(pkgerrors.CodeInternal, "dangling child pointer")
			}
			queue = append(queue, child)
		}
	}
	return nil, "", pkgerrors.New(pkgerrors.CodeInternal, "no open slot found")
}

func childID(member *models.Member, side enums.PlacementSide) *uuid.UUID {
	if side == enums.PlacementSideLeft {
		return member.LeftChildID
	}
	return member.RightChildID
}

func setChildID(member *models.Member, side enums.PlacementSide, id *uuid.UUID) {
	if side == enums.PlacementSideLeft {
		member.LeftChildID = id
		return
	}
	member.RightChildID = id
}

func (s *service) RecordVolume(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount decimal.Decimal) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if !amount.IsPositive() {
		return nil
	}

	repo := s.repo.WithTx(tx)
	member, err := repo.GetByIDForUpdate(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}

	member.PersonalBV = member.PersonalBV.Add(amount)
	if err := repo.Save(ctx, member); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save member volume")
	}

	// O(depth) ancestor walk; the child's slot side picks the leg at each
	// ancestor.
	child := member
	for child.PlacementParentID != nil {
		parent, err := repo.GetByIDForUpdate(ctx, *child.PlacementParentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ancestor")
		}
		if child.PlacementSide != nil && *child.PlacementSide == enums.PlacementSideRight {
			parent.RightBV = parent.RightBV.Add(amount)
		} else {
			parent.LeftBV = parent.LeftBV.Add(amount)
		}
		if err := repo.Save(ctx, parent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ancestor volume")
		}
		child = parent
	}
	return nil
}

func (s *service) MatchAndCarry(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	repo := s.repo.WithTx(tx)
	member, err := repo.GetByIDForUpdate(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}

	matched := decimal.Min(member.LeftBV, member.RightBV)
	if !matched.IsPositive() {
		return decimal.Zero, nil
	}

	member.LeftBV = member.LeftBV.Sub(matched)
	member.RightBV = member.RightBV.Sub(matched)
	if err := repo.Save(ctx, member); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save matched volumes")
	}
	return matched, nil
}

func (s *service) GetMember(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	member, err := s.repo.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return member, nil
}

// MaxTreeDepth caps how many generations a single genealogy read returns.
const MaxTreeDepth = 6

func (s *service) GetTree(ctx context.Context, memberID uuid.UUID, depth int) (*TreeNode, error) {
	if depth <= 0 || depth > MaxTreeDepth {
		depth = MaxTreeDepth
	}
	member, err := s.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.buildTree(ctx, member, depth)
}

func (s *service) buildTree(ctx context.Context, member *models.Member, depth int) (*TreeNode, error) {
	node := &TreeNode{Member: member}
	if depth <= 1 {
		return node, nil
	}

	ids := make([]uuid.UUID, 0, 2)
	if member.LeftChildID != nil {
		ids = append(ids, *member.LeftChildID)
	}
	if member.RightChildID != nil {
		ids = append(ids, *member.RightChildID)
	}
	if len(ids) == 0 {
		return node, nil
	}

	children, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load children")
	}
	for i := range children {
		child := &children[i]
		sub, err := s.buildTree(ctx, child, depth-1)
		if err != nil {
			return nil, err
		}
		if member.LeftChildID != nil && child.ID == *member.LeftChildID {
			node.Left = sub
		} else {
			node.Right = sub
		}
	}
	return node, nil
}

func (s *service) GetStats(ctx context.Context, memberID uuid.UUID) (*TreeStats, error) {
	member, err := s.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	stats := &TreeStats{
		MemberID:   member.ID,
		LeftBV:     member.LeftBV,
		RightBV:    member.RightBV,
		PersonalBV: member.PersonalBV,
	}
	if member.LeftChildID != nil {
		count, err := s.repo.CountSubtree(ctx, *member.LeftChildID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count left subtree")
		}
		stats.LeftCount = count
	}
	if member.RightChildID != nil {
		count, err := s.repo.CountSubtree(ctx, *member.RightChildID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count right subtree")
		}
		stats.RightCount = count
	}
	return stats, nil
}

// VerifyIntegrity cross-checks parent and child pointers over the whole
// tree and reports every inconsistency found.
func (s *service) VerifyIntegrity(ctx context.Context) ([]string, error) {
	members, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}

	byID := make(map[uuid.UUID]*models.Member, len(members))
	for i := range members {
		byID[members[i].ID] = &members[i]
	}

	var problems []string
	roots := 0
	for i := range members {
		m := &members[i]
		if m.PlacementParentID == nil {
			roots++
			if m.PlacementSide != nil {
				problems = append(problems, fmt.Sprintf("member %s: root with placement side", m.ID))
			}
			continue
		}
		if m.PlacementSide == nil {
			problems = append(problems, fmt.Sprintf("member %s: placed without a side", m.ID))
			continue
		}
		parent, ok := byID[*m.PlacementParentID]
		if !ok {
			problems = append(problems, fmt.Sprintf("member %s: missing parent %s", m.ID, *m.PlacementParentID))
			continue
		}
		pointer := childID(parent, *m.PlacementSide)
		if pointer == nil || *pointer != m.ID {
			problems = append(problems, fmt.Sprintf("member %s: parent %s %s pointer mismatch", m.ID, parent.ID, *m.PlacementSide))
		}
		if m.Depth != parent.Depth+1 {
			problems = append(problems, fmt.Sprintf("member %s: depth %d, parent depth %d", m.ID, m.Depth, parent.Depth))
		}
	}
	if roots > 1 {
		problems = append(problems, fmt.Sprintf("tree has %d roots", roots))
	}
	return problems, nil
}
