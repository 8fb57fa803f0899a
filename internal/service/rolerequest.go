package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ajjmal/marketplace-system/internal/model"
	"github.com/ajjmal/marketplace-system/internal/repository"
	"github.com/ajjmal/marketplace-system/internal/validation"
)

// defaultCommissionRate is the platform commission, in percent, applied to
// newly provisioned vendors.
const defaultCommissionRate = 10

// ErrStoreNameRequired is returned when a vendor application has no usable store name.
var ErrStoreNameRequired = errors.New("vendor application requires a store name")

// RoleRepository describes the data access contract used by the role service.
type RoleRepository interface {
	CreateRoleRequest(ctx context.Context, userID int64, role model.UserRole, submissionData []byte) (*model.RoleRequest, error)
	GetRoleRequest(ctx context.Context, requestID int64) (*model.RoleRequest, error)
	GetPendingRoleRequests(ctx context.Context) ([]model.RoleRequest, error)
	ApproveRoleRequest(ctx context.Context, requestID, processedBy int64, adminNotes string, vendor *repository.VendorInit) (*model.RoleRequest, error)
	RejectRoleRequest(ctx context.Context, requestID, processedBy int64, reason, adminNotes string) (*model.RoleRequest, error)
	CancelRoleRequest(ctx context.Context, requestID, userID int64) error
	SetPrimaryRole(ctx context.Context, userID int64, role model.UserRole, actorID int64) error
	RevokeRole(ctx context.Context, userID int64, role model.UserRole, actorID int64, reason string) error
	GetRoleAssignments(ctx context.Context, userID int64) ([]model.RoleAssignment, error)
	GetRoleHistory(ctx context.Context, filter repository.RoleHistoryFilter) ([]model.RoleHistoryItem, error)
}

// RoleService mediates role requests and their administrative disposition.
type RoleService struct {
	repo RoleRepository
}

// NewRoleService creates a role service backed by the given repository.
func NewRoleService(repo RoleRepository) *RoleService {
	return &RoleService{repo: repo}
}

// vendorSubmission is the expected shape of a VENDOR application payload.
type vendorSubmission struct {
	StoreName string `json:"storeName"`
}

// CreateRoleRequest records an application for an elevated role. Vendor
// applications are validated up front so approval cannot fail on a bad store
// name later.
func (s *RoleService) CreateRoleRequest(ctx context.Context, userID int64, role model.UserRole, submissionData []byte) (*model.RoleRequest, error) {
	if userID <= 0 {
		return nil, ErrActorRequired
	}
	if !model.ValidUserRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if role == model.RoleVendor {
		if _, err := parseVendorSubmission(submissionData); err != nil {
			return nil, err
		}
	}

	return s.repo.CreateRoleRequest(ctx, userID, role, submissionData)
}

func parseVendorSubmission(data []byte) (*vendorSubmission, error) {
	var sub vendorSubmission
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("parse submission data: %w", err)
		}
	}
	if !validation.ValidStoreName(sub.StoreName) {
		return nil, ErrStoreNameRequired
	}
	return &sub, nil
}

// ApproveRoleRequest grants the requested role. For VENDOR requests the vendor
// profile and balance are provisioned in the same transaction, with the slug
// derived from the submitted store name.
func (s *RoleService) ApproveRoleRequest(ctx context.Context, requestID, processedBy int64, adminNotes string) (*model.RoleRequest, error) {
	if processedBy <= 0 {
		return nil, ErrActorRequired
	}

	req, err := s.repo.GetRoleRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var vendor *repository.VendorInit
	if req.RequestedRole == model.RoleVendor {
		sub, err := parseVendorSubmission(req.SubmissionData)
		if err != nil {
			return nil, err
		}
		vendor = &repository.VendorInit{
			StoreName:      sub.StoreName,
			Slug:           validation.Slugify(sub.StoreName),
			CommissionRate: defaultCommissionRate,
		}
	}

	return s.repo.ApproveRoleRequest(ctx, requestID, processedBy, adminNotes, vendor)
}

// RejectRoleRequest declines a pending request with a reason.
func (s *RoleService) RejectRoleRequest(ctx context.Context, requestID, processedBy int64, reason, adminNotes string) (*model.RoleRequest, error) {
	if processedBy <= 0 {
		return nil, ErrActorRequired
	}
	if reason == "" {
		return nil, errors.New("rejection reason is required")
	}
	return s.repo.RejectRoleRequest(ctx, requestID, processedBy, reason, adminNotes)
}

// CancelRoleRequest removes a pending request on behalf of its requester.
func (s *RoleService) CancelRoleRequest(ctx context.Context, requestID, userID int64) error {
	if userID <= 0 {
		return ErrActorRequired
	}
	return s.repo.CancelRoleRequest(ctx, requestID, userID)
}

// GetRoleRequest returns a single role request.
func (s *RoleService) GetRoleRequest(ctx context.Context, requestID int64) (*model.RoleRequest, error) {
	return s.repo.GetRoleRequest(ctx, requestID)
}

// GetPendingRoleRequests returns the admin work queue, oldest first.
func (s *RoleService) GetPendingRoleRequests(ctx context.Context) ([]model.RoleRequest, error) {
	return s.repo.GetPendingRoleRequests(ctx)
}

// SetPrimaryRole makes one of the user's active roles primary.
func (s *RoleService) SetPrimaryRole(ctx context.Context, userID int64, role model.UserRole, actorID int64) error {
	if actorID <= 0 {
		return ErrActorRequired
	}
	if !model.ValidUserRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.repo.SetPrimaryRole(ctx, userID, role, actorID)
}

// RevokeRole deactivates one of the user's roles.
func (s *RoleService) RevokeRole(ctx context.Context, userID int64, role model.UserRole, actorID int64, reason string) error {
	if actorID <= 0 {
		return ErrActorRequired
	}
	if !model.ValidUserRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.repo.RevokeRole(ctx, userID, role, actorID, reason)
}

// GetRoleAssignments returns the user's role assignments.
func (s *RoleService) GetRoleAssignments(ctx context.Context, userID int64) ([]model.RoleAssignment, error) {
	return s.repo.GetRoleAssignments(ctx, userID)
}

// GetRoleHistory returns audit entries matching the filter, newest first.
func (s *RoleService) GetRoleHistory(ctx context.Context, filter repository.RoleHistoryFilter) ([]model.RoleHistoryItem, error) {
	return s.repo.GetRoleHistory(ctx, filter)
}

// GetRoleActivitySummary derives per-action counts and the distinct role set
// from the user's full history. Linear in history length, which stays small.
func (s *RoleService) GetRoleActivitySummary(ctx context.Context, userID int64) (*model.RoleActivitySummary, error) {
	history, err := s.repo.GetRoleHistory(ctx, repository.RoleHistoryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	summary := &model.RoleActivitySummary{}
	seen := make(map[model.UserRole]bool)

	for _, h := range history {
		switch h.Action {
		case model.RoleActionAssigned:
			summary.Assignments++
		case model.RoleActionRevoked:
			summary.Revocations++
		case model.RoleActionPrimaryChanged:
			summary.PrimaryChanges++
		}
		if !seen[h.Role] {
			seen[h.Role] = true
			summary.Roles = append(summary.Roles, h.Role)
		}
	}

	return summary, nil
}
