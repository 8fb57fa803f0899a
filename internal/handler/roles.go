package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ajjmal/marketplace-system/internal/middleware"
	"github.com/ajjmal/marketplace-system/internal/model"
	"github.com/ajjmal/marketplace-system/internal/repository"
	"github.com/ajjmal/marketplace-system/internal/service"
)

type roleRequestResponse struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	RequestedRole   string          `json:"requested_role"`
	Status          string          `json:"status"`
	SubmissionData  json.RawMessage `json:"submission_data"`
	AdminNotes      string          `json:"admin_notes,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ProcessedBy     *int64          `json:"processed_by,omitempty"`
	ProcessedAt     *string         `json:"processed_at,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

func toRoleRequestResponse(req *model.RoleRequest) roleRequestResponse {
	return roleRequestResponse{
		ID:              req.ID,
		UserID:          req.UserID,
		RequestedRole:   string(req.RequestedRole),
		Status:          string(req.Status),
		SubmissionData:  json.RawMessage(req.SubmissionData),
		AdminNotes:      req.AdminNotes,
		RejectionReason: req.RejectionReason,
		ProcessedBy:     req.ProcessedBy,
		ProcessedAt:     formatTimePtr(req.ProcessedAt),
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
	}
}

type createRoleRequestRequest struct {
	RequestedRole  string          `json:"requested_role"`
	SubmissionData json.RawMessage `json:"submission_data"`
}

// CreateRoleRequest records a role application from the authenticated user.
func (h *Handler) CreateRoleRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createRoleRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.roles.CreateRoleRequest(r.Context(), actorID, model.UserRole(req.RequestedRole), req.SubmissionData)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrRoleAlreadyHeld) || errors.Is(err, repository.ErrRequestPending) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, service.ErrInvalidRole) || errors.Is(err, service.ErrStoreNameRequired) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("create role request error", zap.Error(err), zap.Int64("userID", actorID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toRoleRequestResponse(created))
}

type approveRoleRequestRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// ApproveRoleRequest grants the requested role on behalf of the authenticated admin.
func (h *Handler) ApproveRoleRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requestID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req approveRoleRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	approved, err := h.roles.ApproveRoleRequest(r.Context(), requestID, actorID, req.AdminNotes)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrRequestNotPending) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, repository.ErrRoleAlreadyHeld) || errors.Is(err, repository.ErrVendorProfileExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("approve role request error", zap.Error(err), zap.Int64("requestID", requestID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toRoleRequestResponse(approved))
}

type rejectRoleRequestRequest struct {
	RejectionReason string `json:"rejection_reason"`
	AdminNotes      string `json:"admin_notes"`
}

// RejectRoleRequest declines a pending role request.
func (h *Handler) RejectRoleRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requestID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req rejectRoleRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RejectionReason == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rejected, err := h.roles.RejectRoleRequest(r.Context(), requestID, actorID, req.RejectionReason, req.AdminNotes)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrRequestNotPending) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("reject role request error", zap.Error(err), zap.Int64("requestID", requestID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toRoleRequestResponse(rejected))
}

// CancelRoleRequest removes a pending request on behalf of its requester.
func (h *Handler) CancelRoleRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requestID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.roles.CancelRoleRequest(r.Context(), requestID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrNotRequestOwner) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		if errors.Is(err, repository.ErrRequestNotPending) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("cancel role request error", zap.Error(err), zap.Int64("requestID", requestID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPendingRoleRequests returns the admin work queue.
func (h *Handler) GetPendingRoleRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.roles.GetPendingRoleRequests(r.Context())
	if err != nil {
		h.logger.Error("get pending role requests error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]roleRequestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, toRoleRequestResponse(&requests[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type setPrimaryRoleRequest struct {
	Role string `json:"role"`
}

// SetPrimaryRole makes one of the user's active roles primary.
func (h *Handler) SetPrimaryRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	userID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req setPrimaryRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.roles.SetPrimaryRole(r.Context(), userID, model.UserRole(req.Role), actorID)
	if err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrInvalidRole) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("set primary role error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type revokeRoleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

// RevokeRole deactivates one of the user's roles.
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	userID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req revokeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.roles.RevokeRole(r.Context(), userID, model.UserRole(req.Role), actorID, req.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrInvalidRole) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("revoke role error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type roleAssignmentResponse struct {
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	IsPrimary bool   `json:"is_primary"`
	CreatedAt string `json:"created_at"`
}

// GetRoleAssignments returns the user's role assignments.
func (h *Handler) GetRoleAssignments(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	assignments, err := h.roles.GetRoleAssignments(r.Context(), userID)
	if err != nil {
		h.logger.Error("get role assignments error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]roleAssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		resp = append(resp, roleAssignmentResponse{
			Role:      string(a.Role),
			IsActive:  a.IsActive,
			IsPrimary: a.IsPrimary,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type roleHistoryResponse struct {
	Role      string `json:"role"`
	Action    string `json:"action"`
	ActedBy   int64  `json:"acted_by"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

// GetRoleHistory returns the user's role audit trail, optionally filtered by
// role, action or acting user.
func (h *Handler) GetRoleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	filter := repository.RoleHistoryFilter{
		UserID: userID,
		Role:   model.UserRole(r.URL.Query().Get("role")),
		Action: model.RoleHistoryAction(r.URL.Query().Get("action")),
	}
	if v := r.URL.Query().Get("acted_by"); v != "" {
		actedBy, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		filter.ActedBy = actedBy
	}

	history, err := h.roles.GetRoleHistory(r.Context(), filter)
	if err != nil {
		h.logger.Error("get role history error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]roleHistoryResponse, 0, len(history))
	for _, item := range history {
		resp = append(resp, roleHistoryResponse{
			Role:      string(item.Role),
			Action:    string(item.Action),
			ActedBy:   item.ActedBy,
			Reason:    item.Reason,
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type roleSummaryResponse struct {
	Assignments    int      `json:"assignments"`
	Revocations    int      `json:"revocations"`
	PrimaryChanges int      `json:"primary_changes"`
	Roles          []string `json:"roles"`
}

// GetRoleSummary returns aggregate counts over the user's role history.
func (h *Handler) GetRoleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	summary, err := h.roles.GetRoleActivitySummary(r.Context(), userID)
	if err != nil {
		h.logger.Error("get role summary error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := roleSummaryResponse{
		Assignments:    summary.Assignments,
		Revocations:    summary.Revocations,
		PrimaryChanges: summary.PrimaryChanges,
		Roles:          make([]string, 0, len(summary.Roles)),
	}
	for _, role := range summary.Roles {
		resp.Roles = append(resp.Roles, string(role))
	}
	writeJSON(w, http.StatusOK, resp)
}

type notificationResponse struct {
	ID        int64  `json:"id"`
	TitleAr   string `json:"title_ar"`
	TitleEn   string `json:"title_en"`
	BodyAr    string `json:"body_ar"`
	BodyEn    string `json:"body_en"`
	Category  string `json:"category"`
	Link      string `json:"link,omitempty"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// GetMyNotifications returns the authenticated user's notifications.
func (h *Handler) GetMyNotifications(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	notifications, err := h.notifications.GetNotificationsByUser(r.Context(), actorID)
	if err != nil {
		h.logger.Error("get notifications error", zap.Error(err), zap.Int64("userID", actorID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(notifications) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			TitleAr:   n.TitleAr,
			TitleEn:   n.TitleEn,
			BodyAr:    n.BodyAr,
			BodyEn:    n.BodyEn,
			Category:  n.Category,
			Link:      n.Link,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkNotificationRead flips the read flag of one of the actor's notifications.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	notificationID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.notifications.MarkNotificationRead(r.Context(), notificationID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("mark notification read error", zap.Error(err), zap.Int64("notificationID", notificationID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
