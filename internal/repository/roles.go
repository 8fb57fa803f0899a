package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ajjmal/marketplace-system/internal/model"
)

// VendorInit carries the storefront data provisioned on VENDOR approval.
type VendorInit struct {
	StoreName      string
	Slug           string
	CommissionRate int32
}

// CreateRoleRequest records a pending application for an elevated role.
// The pending-uniqueness invariant is backed by a partial unique index, so a
// concurrent duplicate surfaces as ErrRequestPending rather than slipping past
// the pre-checks.
func (r *PostgresRepository) CreateRoleRequest(ctx context.Context, userID int64, role model.UserRole, submissionData []byte) (*model.RoleRequest, error) {
	exists, err := r.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	held, err := r.hasActiveRole(ctx, r.pool, userID, role)
	if err != nil {
		return nil, err
	}
	if held {
		return nil, ErrRoleAlreadyHeld
	}

	if len(submissionData) == 0 {
		submissionData = []byte(`{}`)
	}

	req := &model.RoleRequest{
		UserID:         userID,
		RequestedRole:  role,
		Status:         model.RoleRequestPending,
		SubmissionData: submissionData,
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO user_role_requests (user_id, requested_role, submission_data)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		userID, string(role), submissionData,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrRequestPending
		}
		return nil, fmt.Errorf("insert role request: %w", err)
	}

	return req, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) hasActiveRole(ctx context.Context, q querier, userID int64, role model.UserRole) (bool, error) {
	var held bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM user_role_assignments
		    WHERE user_id = $1 AND role = $2 AND is_active
		 )`,
		userID, string(role),
	).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("check role assignment: %w", err)
	}
	return held, nil
}

// GetRoleRequest returns a role request by id.
func (r *PostgresRepository) GetRoleRequest(ctx context.Context, requestID int64) (*model.RoleRequest, error) {
	return scanRoleRequest(r.pool.QueryRow(ctx,
		`SELECT id, user_id, requested_role, status, submission_data,
		        admin_notes, rejection_reason, processed_by, processed_at, created_at
		 FROM user_role_requests WHERE id = $1`,
		requestID,
	))
}

func scanRoleRequest(row pgx.Row) (*model.RoleRequest, error) {
	var req model.RoleRequest
	var role, status string
	err := row.Scan(&req.ID, &req.UserID, &role, &status, &req.SubmissionData,
		&req.AdminNotes, &req.RejectionReason, &req.ProcessedBy, &req.ProcessedAt, &req.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("scan role request: %w", err)
	}
	req.RequestedRole = model.UserRole(role)
	req.Status = model.RoleRequestStatus(status)
	return &req, nil
}

// GetPendingRoleRequests returns all pending requests, oldest first.
func (r *PostgresRepository) GetPendingRoleRequests(ctx context.Context) ([]model.RoleRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, requested_role, status, submission_data,
		        admin_notes, rejection_reason, processed_by, processed_at, created_at
		 FROM user_role_requests WHERE status = 'PENDING' ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select role requests: %w", err)
	}
	defer rows.Close()

	var reqs []model.RoleRequest
	for rows.Next() {
		var req model.RoleRequest
		var role, status string
		err := rows.Scan(&req.ID, &req.UserID, &role, &status, &req.SubmissionData,
			&req.AdminNotes, &req.RejectionReason, &req.ProcessedBy, &req.ProcessedAt, &req.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan role request: %w", err)
		}
		req.RequestedRole = model.UserRole(role)
		req.Status = model.RoleRequestStatus(status)
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reqs, nil
}

// ApproveRoleRequest marks a pending request approved and grants the role in one
// transaction: request update, role assignment, ASSIGNED audit row and, for
// VENDOR requests, the vendor profile with its balance plus the approval
// notification event.
func (r *PostgresRepository) ApproveRoleRequest(ctx context.Context, requestID, processedBy int64, adminNotes string, vendor *VendorInit) (*model.RoleRequest, error) {
	err := r.withRetry(ctx, func() error {
		return r.approveRoleRequestTx(ctx, requestID, processedBy, adminNotes, vendor)
	})
	if err != nil {
		return nil, err
	}
	return r.GetRoleRequest(ctx, requestID)
}

func (r *PostgresRepository) approveRoleRequestTx(ctx context.Context, requestID, processedBy int64, adminNotes string, vendor *VendorInit) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		userID int64
		role   string
		status string
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, requested_role, status FROM user_role_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	).Scan(&userID, &role, &status)
	if err != nil {
		if isNoRows(err) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("select role request: %w", err)
	}

	if model.RoleRequestStatus(status) != model.RoleRequestPending {
		return ErrRequestNotPending
	}

	held, err := r.hasActiveRole(ctx, tx, userID, model.UserRole(role))
	if err != nil {
		return err
	}
	if held {
		return ErrRoleAlreadyHeld
	}

	_, err = tx.Exec(ctx,
		`UPDATE user_role_requests
		 SET status = 'APPROVED', processed_by = $2, processed_at = now(), admin_notes = $3
		 WHERE id = $1`,
		requestID, processedBy, adminNotes,
	)
	if err != nil {
		return fmt.Errorf("update role request: %w", err)
	}

	// A previously revoked assignment for the same role is re-activated.
	_, err = tx.Exec(ctx,
		`INSERT INTO user_role_assignments (user_id, role, is_active, is_primary)
		 VALUES ($1, $2, TRUE, FALSE)
		 ON CONFLICT (user_id, role) DO UPDATE SET is_active = TRUE`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("insert role assignment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_role_history (user_id, role, action, acted_by, reason)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, role, string(model.RoleActionAssigned), processedBy, "role request approved",
	)
	if err != nil {
		return fmt.Errorf("insert role history: %w", err)
	}

	if model.UserRole(role) == model.RoleVendor {
		if vendor == nil {
			return errors.New("vendor init data missing for vendor approval")
		}
		if err := createVendorProfile(ctx, tx, userID, vendor); err != nil {
			return err
		}

		err = enqueueOutbox(ctx, tx, OutboxKindVendorApplication, VendorApplicationEvent{
			UserID: userID,
			Status: model.RoleRequestApproved,
		})
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func createVendorProfile(ctx context.Context, tx pgx.Tx, userID int64, vendor *VendorInit) error {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vendor_profiles WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check vendor profile: %w", err)
	}
	if exists {
		return ErrVendorProfileExists
	}

	var profileID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO vendor_profiles (user_id, store_name, slug, commission_rate)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		userID, vendor.StoreName, vendor.Slug, vendor.CommissionRate,
	).Scan(&profileID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrVendorProfileExists
		}
		return fmt.Errorf("insert vendor profile: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO vendor_balances (vendor_profile_id) VALUES ($1)`,
		profileID,
	)
	if err != nil {
		return fmt.Errorf("insert vendor balance: %w", err)
	}

	return nil
}

// RejectRoleRequest marks a pending request rejected. No role changes are
// compensated because none were applied.
func (r *PostgresRepository) RejectRoleRequest(ctx context.Context, requestID, processedBy int64, reason, adminNotes string) (*model.RoleRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		userID int64
		role   string
		status string
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, requested_role, status FROM user_role_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	).Scan(&userID, &role, &status)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("select role request: %w", err)
	}

	if model.RoleRequestStatus(status) != model.RoleRequestPending {
		return nil, ErrRequestNotPending
	}

	_, err = tx.Exec(ctx,
		`UPDATE user_role_requests
		 SET status = 'REJECTED', processed_by = $2, processed_at = now(),
		     rejection_reason = $3, admin_notes = $4
		 WHERE id = $1`,
		requestID, processedBy, reason, adminNotes,
	)
	if err != nil {
		return nil, fmt.Errorf("update role request: %w", err)
	}

	if model.UserRole(role) == model.RoleVendor {
		err = enqueueOutbox(ctx, tx, OutboxKindVendorApplication, VendorApplicationEvent{
			UserID: userID,
			Status: model.RoleRequestRejected,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return r.GetRoleRequest(ctx, requestID)
}

// CancelRoleRequest deletes a pending request. Only the original requester may
// cancel.
func (r *PostgresRepository) CancelRoleRequest(ctx context.Context, requestID, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		ownerID int64
		status  string
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, status FROM user_role_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	).Scan(&ownerID, &status)
	if err != nil {
		if isNoRows(err) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("select role request: %w", err)
	}

	if ownerID != userID {
		return ErrNotRequestOwner
	}
	if model.RoleRequestStatus(status) != model.RoleRequestPending {
		return ErrRequestNotPending
	}

	_, err = tx.Exec(ctx, `DELETE FROM user_role_requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("delete role request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// SetPrimaryRole marks one active assignment primary. The single conditional
// UPDATE keeps the at-most-one-primary invariant without an unset-then-set
// round trip.
func (r *PostgresRepository) SetPrimaryRole(ctx context.Context, userID int64, role model.UserRole, actorID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	held, err := r.hasActiveRole(ctx, tx, userID, role)
	if err != nil {
		return err
	}
	if !held {
		return ErrAssignmentNotFound
	}

	_, err = tx.Exec(ctx,
		`UPDATE user_role_assignments SET is_primary = (role = $2) WHERE user_id = $1 AND is_active`,
		userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("set primary role: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_role_history (user_id, role, action, acted_by, reason)
		 VALUES ($1, $2, $3, $4, '')`,
		userID, string(role), string(model.RoleActionPrimaryChanged), actorID,
	)
	if err != nil {
		return fmt.Errorf("insert role history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// RevokeRole deactivates an assignment and records the REVOKED audit entry.
func (r *PostgresRepository) RevokeRole(ctx context.Context, userID int64, role model.UserRole, actorID int64, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE user_role_assignments
		 SET is_active = FALSE, is_primary = FALSE
		 WHERE user_id = $1 AND role = $2 AND is_active`,
		userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_role_history (user_id, role, action, acted_by, reason)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, string(role), string(model.RoleActionRevoked), actorID, reason,
	)
	if err != nil {
		return fmt.Errorf("insert role history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRoleAssignments returns a user's assignments, active first.
func (r *PostgresRepository) GetRoleAssignments(ctx context.Context, userID int64) ([]model.RoleAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, role, is_active, is_primary, created_at
		 FROM user_role_assignments WHERE user_id = $1 ORDER BY is_active DESC, created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select role assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.RoleAssignment
	for rows.Next() {
		var a model.RoleAssignment
		var role string
		if err := rows.Scan(&a.ID, &a.UserID, &role, &a.IsActive, &a.IsPrimary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		a.Role = model.UserRole(role)
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return assignments, nil
}

// RoleHistoryFilter narrows role history queries. Zero values mean no filter.
type RoleHistoryFilter struct {
	UserID  int64
	Role    model.UserRole
	Action  model.RoleHistoryAction
	ActedBy int64
}

// GetRoleHistory returns audit entries matching the filter, newest first.
func (r *PostgresRepository) GetRoleHistory(ctx context.Context, filter RoleHistoryFilter) ([]model.RoleHistoryItem, error) {
	var (
		conds []string
		args  []any
	)

	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conds = append(conds, "user_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, "role = $"+strconv.Itoa(len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conds = append(conds, "action = $"+strconv.Itoa(len(args)))
	}
	if filter.ActedBy != 0 {
		args = append(args, filter.ActedBy)
		conds = append(conds, "acted_by = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT id, user_id, role, action, acted_by, reason, created_at FROM user_role_history`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select role history: %w", err)
	}
	defer rows.Close()

	var items []model.RoleHistoryItem
	for rows.Next() {
		var h model.RoleHistoryItem
		var role, action string
		if err := rows.Scan(&h.ID, &h.UserID, &role, &action, &h.ActedBy, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role history: %w", err)
		}
		h.Role = model.UserRole(role)
		h.Action = model.RoleHistoryAction(action)
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetVendorProfileByUser returns the vendor profile owned by a user.
func (r *PostgresRepository) GetVendorProfileByUser(ctx context.Context, userID int64) (*model.VendorProfile, error) {
	var p model.VendorProfile
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, store_name, slug, commission_rate, is_verified, is_active, created_at
		 FROM vendor_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.ID, &p.UserID, &p.StoreName, &p.Slug, &p.CommissionRate, &p.IsVerified, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrVendorProfileNotFound
		}
		return nil, fmt.Errorf("select vendor profile: %w", err)
	}
	return &p, nil
}
