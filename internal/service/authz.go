package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pharmacy-service/config"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"
)

// Session is the resolved identity of the caller for one request.
type Session struct {
	UserID      string
	Email       string
	Name        string
	Role        string
	Permissions models.StaffPermissions
}

func (s Session) IsAdmin() bool  { return s.Role == models.RoleAdmin }
func (s Session) IsStaff() bool  { return s.Role == models.RoleStaff }
func (s Session) IsClient() bool { return s.Role == models.RoleClient }

// CanViewOrders covers the pharmacy-side order listing.
func (s Session) CanViewOrders() bool {
	return s.IsAdmin() || (s.IsStaff() && s.Permissions.CanViewOrders)
}

// CanManageInventory covers catalog create/update.
func (s Session) CanManageInventory() bool {
	return s.IsAdmin() || (s.IsStaff() && s.Permissions.CanManageInventory)
}

// CanUpdateStock covers the stock-only quick update.
func (s Session) CanUpdateStock() bool {
	return s.IsAdmin() || (s.IsStaff() && s.Permissions.CanUpdateStock)
}

// CanViewAnalytics covers the dashboard summary.
func (s Session) CanViewAnalytics() bool {
	return s.IsAdmin() || (s.IsStaff() && s.Permissions.CanViewAnalytics)
}

// CanGenerateInvoices covers invoice rendering for arbitrary orders.
func (s Session) CanGenerateInvoices() bool {
	return s.IsAdmin() || (s.IsStaff() && s.Permissions.CanGenerateInvoices)
}

// CanTransition is the guarded transition table. It decides whether the
// actor may move the order from its current status to the requested
// one along the normal path. The admin override path does not consult
// this table.
func CanTransition(sess Session, order *models.Order, to string) bool {
	switch order.Status {
	case models.StatusPending:
		return to == models.StatusCheckingStock && sess.IsAdmin()
	case models.StatusCheckingStock:
		return to == models.StatusPharmacyConfirmed && sess.IsAdmin()
	case models.StatusPharmacyConfirmed:
		return to == models.StatusCustomerConfirmed && sess.UserID == order.UserID
	case models.StatusCustomerConfirmed:
		return to == models.StatusProcessing && sess.IsAdmin()
	case models.StatusProcessing:
		return to == models.StatusCompleted && sess.IsAdmin()
	}
	return false
}

// AuthService resolves request identities and handles admin elevation
// against the configured allowlist.
type AuthService struct {
	users     UserDirectory
	allowlist []config.AdminEntry
	logger    *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserDirectory, allowlist []config.AdminEntry) *AuthService {
	return &AuthService{
		users:     users,
		allowlist: allowlist,
		logger:    util.GetLogger(),
	}
}

// ResolveSession looks up the forwarded user id and builds the session
// for this request.
func (a *AuthService) ResolveSession(ctx context.Context, userID string) (Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.ResolveSession")
	defer span.End()

	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("%w: unknown user %s", ErrPermissionDenied, userID)
	}

	return Session{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: user.Permissions,
	}, nil
}

// EnsureUser registers or refreshes the caller's profile from the
// identity the gateway forwarded. First-time users start as clients;
// refreshes never touch the stored role.
func (a *AuthService) EnsureUser(ctx context.Context, user *models.User) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.EnsureUser")
	defer span.End()

	if user.ID == "" || user.Email == "" {
		return nil, fmt.Errorf("%w: user id and email are required", ErrValidation)
	}

	if byEmail, err := a.users.GetUserByEmail(ctx, user.Email); err == nil && byEmail.ID != user.ID {
		return nil, fmt.Errorf("%w: email already registered", ErrValidation)
	}

	existing, err := a.users.GetUser(ctx, user.ID)
	if err != nil {
		user.Role = models.RoleClient
		user.CreatedAt = time.Now()
		a.logger.Info("Registering new user", zap.String("user_id", user.ID))
	} else {
		user.Role = existing.Role
		user.Permissions = existing.Permissions
		user.CreatedAt = existing.CreatedAt
	}

	if err := a.users.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// IsAllowlisted reports whether an email may attempt admin elevation.
func (a *AuthService) IsAllowlisted(email string) bool {
	return a.findEntry(email) != nil
}

// Elevate promotes the caller to admin when their email is allowlisted
// and the passkey matches.
func (a *AuthService) Elevate(ctx context.Context, sess Session, passkey string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.Elevate")
	defer span.End()

	entry := a.findEntry(sess.Email)
	if entry == nil {
		a.logger.Warn("Elevation attempt from non-allowlisted email",
			zap.String("user_id", sess.UserID))
		return fmt.Errorf("%w: email not allowlisted", ErrPermissionDenied)
	}

	if subtle.ConstantTimeCompare([]byte(entry.Passkey), []byte(passkey)) != 1 {
		a.logger.Warn("Elevation attempt with wrong passkey",
			zap.String("user_id", sess.UserID))
		return ErrInvalidPasskey
	}

	if err := a.users.UpdateUserRole(ctx, sess.UserID, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to elevate user: %w", err)
	}

	a.logger.Info("User elevated to admin", zap.String("user_id", sess.UserID))
	return nil
}

func (a *AuthService) findEntry(email string) *config.AdminEntry {
	for i := range a.allowlist {
		if strings.EqualFold(a.allowlist[i].Email, email) {
			return &a.allowlist[i]
		}
	}
	return nil
}
