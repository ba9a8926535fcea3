package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/jobs"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// SignUpInput carries registration fields.
type SignUpInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// SignInInput carries credential and client metadata for a login attempt.
type SignInInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
	SourceApp string
}

// SignInResult is the issued token plus its owner.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// AuthService implements registration, login and credential recovery.
type AuthService struct {
	users         repository.UserRepository
	sessions      repository.SessionRepository
	loginHistory  repository.LoginHistoryRepository
	notifications repository.NotificationRepository
	queue         jobs.Enqueuer
	tokens        *auth.TokenManager
	hasher        *auth.PasswordHasher
	resetTTL      time.Duration
	verifyTTL     time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// AuthDependencies bundles the collaborators of AuthService.
type AuthDependencies struct {
	Users         repository.UserRepository
	Sessions      repository.SessionRepository
	LoginHistory  repository.LoginHistoryRepository
	Notifications repository.NotificationRepository
	Queue         jobs.Enqueuer
	Tokens        *auth.TokenManager
	Hasher        *auth.PasswordHasher
	ResetTTL      time.Duration
	VerifyTTL     time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:         deps.Users,
		sessions:      deps.Sessions,
		loginHistory:  deps.LoginHistory,
		notifications: deps.Notifications,
		queue:         deps.Queue,
		tokens:        deps.Tokens,
		hasher:        deps.Hasher,
		resetTTL:      deps.ResetTTL,
		verifyTTL:     deps.VerifyTTL,
		logger:        deps.Logger,
		now:           now,
	}
}

// SignUp registers a client account and kicks off welcome and
// verification mails.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, util.NewBadRequest("email and password are required")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.MapError(err)
	}
	if existing != nil {
		return nil, util.NewConflict("an account with this email already exists", nil)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, util.NewInternalError(err)
	}

	rawVerify, verifyHash, err := auth.NewRandomToken()
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	verifyExpires := s.now().Add(s.verifyTTL)

	user := &domain.User{
		FirstName:                strings.TrimSpace(input.FirstName),
		LastName:                 strings.TrimSpace(input.LastName),
		Username:                 buildUsername(input.FirstName, input.LastName),
		Email:                    email,
		PasswordHash:             passwordHash,
		Role:                     domain.RoleClient,
		IsActive:                 true,
		VerificationTokenHash:    &verifyHash,
		VerificationTokenExpires: &verifyExpires,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, util.MapError(err)
	}

	s.enqueueMail(ctx, jobs.TypeMailWelcome, jobs.MailPayload{To: user.Email, Name: user.FullName()})
	s.enqueueMail(ctx, jobs.TypeMailVerification, jobs.MailPayload{To: user.Email, Name: user.FullName(), Token: rawVerify})

	s.logger.Info("user registered", zap.String("userId", user.ID))
	return user, nil
}

// SignIn authenticates credentials, records the login and returns a
// fresh access token bound to a server-side session.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (*SignInResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewUnauthorized("invalid credentials")
		}
		return nil, util.MapError(err)
	}
	if !s.hasher.Compare(user.PasswordHash, input.Password) {
		return nil, util.NewUnauthorized("invalid credentials")
	}

	switch {
	case !user.IsActive:
		return nil, util.NewUnauthorized("account is deactivated")
	case user.IsBlocked:
		return nil, util.NewUnauthorized("account is blocked")
	case user.IsSuspicious:
		return nil, util.NewUnauthorized("account is flagged, contact support")
	}

	if !user.EmailVerified {
		if err := s.refreshVerificationToken(ctx, user); err != nil {
			return nil, err
		}
		return nil, util.NewUnauthorized("email not verified, a new verification link has been sent")
	}

	now := s.now()
	s.recordLogin(ctx, user, input, now)

	token, err := s.tokens.Issue(user, now)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	session := &domain.Session{
		UserID:     user.ID,
		TokenHash:  auth.HashToken(token),
		DeviceInfo: input.UserAgent,
		IPAddress:  input.IP,
		ExpiresAt:  now.Add(s.tokens.TTL()),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, util.MapError(err)
	}

	s.logger.Info("user signed in", zap.String("userId", user.ID), zap.String("ip", input.IP))
	return &SignInResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// SignOut revokes the session behind the token. Unknown tokens succeed,
// the caller is signed out either way.
func (s *AuthService) SignOut(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, auth.HashToken(rawToken)); err != nil {
		return util.MapError(err)
	}
	return nil
}

// ForgotPassword issues a reset token and mails the reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("no account with this email", nil)
		}
		return util.MapError(err)
	}

	raw, hash, err := auth.NewRandomToken()
	if err != nil {
		return util.NewInternalError(err)
	}
	expires := s.now().Add(s.resetTTL)
	user.ResetTokenHash = &hash
	user.ResetTokenExpires = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return util.MapError(err)
	}

	s.enqueueMail(ctx, jobs.TypeMailForgotPassword, jobs.MailPayload{To: user.Email, Name: user.FullName(), Token: raw})
	return nil
}

// ResetPassword consumes a reset token, replaces the password and
// revokes every active session.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" || newPassword == "" {
		return util.NewBadRequest("token and new password are required")
	}
	user, err := s.users.GetByResetTokenHash(ctx, auth.HashToken(rawToken), s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewBadRequest("invalid or expired reset token")
		}
		return util.MapError(err)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return util.NewInternalError(err)
	}
	user.PasswordHash = passwordHash
	user.ResetTokenHash = nil
	user.ResetTokenExpires = nil
	if err := s.users.Update(ctx, user); err != nil {
		return util.MapError(err)
	}
	if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
		return util.MapError(err)
	}

	s.notify(ctx, user.ID, "Password changed", "Your password was changed and all sessions were signed out.")
	s.enqueueMail(ctx, jobs.TypeMailPasswordChanged, jobs.MailPayload{To: user.Email, Name: user.FullName()})
	s.logger.Info("password reset", zap.String("userId", user.ID))
	return nil
}

// ChangePassword rotates the password of an authenticated user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return util.MapError(err)
	}
	if !s.hasher.Compare(user.PasswordHash, currentPassword) {
		return util.NewBadRequest("current password is incorrect")
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return util.NewInternalError(err)
	}
	user.PasswordHash = passwordHash
	if err := s.users.Update(ctx, user); err != nil {
		return util.MapError(err)
	}
	if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
		return util.MapError(err)
	}

	s.notify(ctx, user.ID, "Password changed", "Your password was changed and all sessions were signed out.")
	s.enqueueMail(ctx, jobs.TypeMailPasswordChanged, jobs.MailPayload{To: user.Email, Name: user.FullName()})
	return nil
}

// VerifyAccount consumes an email verification token.
func (s *AuthService) VerifyAccount(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return util.NewBadRequest("verification token is required")
	}
	user, err := s.users.GetByVerificationTokenHash(ctx, auth.HashToken(rawToken), s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewBadRequest("invalid or expired verification token")
		}
		return util.MapError(err)
	}

	user.EmailVerified = true
	user.VerificationTokenHash = nil
	user.VerificationTokenExpires = nil
	if err := s.users.Update(ctx, user); err != nil {
		return util.MapError(err)
	}

	s.notify(ctx, user.ID, "Account verified", "Your email address has been verified.")
	s.enqueueMail(ctx, jobs.TypeMailAccountVerified, jobs.MailPayload{To: user.Email, Name: user.FullName()})
	s.logger.Info("account verified", zap.String("userId", user.ID))
	return nil
}

func (s *AuthService) refreshVerificationToken(ctx context.Context, user *domain.User) error {
	raw, hash, err := auth.NewRandomToken()
	if err != nil {
		return util.NewInternalError(err)
	}
	expires := s.now().Add(s.verifyTTL)
	user.VerificationTokenHash = &hash
	user.VerificationTokenExpires = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return util.MapError(err)
	}
	s.enqueueMail(ctx, jobs.TypeMailVerification, jobs.MailPayload{To: user.Email, Name: user.FullName(), Token: raw})
	return nil
}

// recordLogin writes the history row, raises a new-device alert when the
// (ip, device) pair is unseen and refreshes last-login metadata. Failures
// here are logged but never block the sign-in.
func (s *AuthService) recordLogin(ctx context.Context, user *domain.User, input SignInInput, now time.Time) {
	deviceName := input.UserAgent
	if deviceName == "" {
		deviceName = "unknown"
	}

	seen, err := s.loginHistory.Exists(ctx, user.ID, input.IP, deviceName)
	if err != nil {
		s.logger.Warn("login history lookup failed", zap.String("userId", user.ID), zap.Error(err))
	} else if !seen {
		s.notify(ctx, user.ID, "New device sign-in",
			fmt.Sprintf("A sign-in from a new device was detected (IP %s).", input.IP))
		s.enqueueMail(ctx, jobs.TypeMailNewDeviceAlert, jobs.MailPayload{
			To:     user.Email,
			Name:   user.FullName(),
			IP:     input.IP,
			Device: deviceName,
		})
	}

	// IP geolocation is not wired up yet; fields keep a sentinel value.
	entry := &domain.LoginHistory{
		UserID:     user.ID,
		IP:         input.IP,
		Country:    "Unknown",
		City:       "Unknown",
		ISP:        "Unknown",
		SourceApp:  input.SourceApp,
		DeviceType: "web",
		DeviceName: deviceName,
	}
	if err := s.loginHistory.Create(ctx, entry); err != nil {
		s.logger.Warn("login history write failed", zap.String("userId", user.ID), zap.Error(err))
	}

	unknown := "Unknown"
	user.LastLoginIP = &input.IP
	user.LastLoginCountry = &unknown
	user.LastLoginCity = &unknown
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("last login update failed", zap.String("userId", user.ID), zap.Error(err))
	}
}

func (s *AuthService) notify(ctx context.Context, userID, title, message string) {
	n := &domain.Notification{UserID: userID, Title: title, Message: message}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Warn("notification write failed", zap.String("userId", userID), zap.Error(err))
	}
}

func (s *AuthService) enqueueMail(ctx context.Context, kind string, payload jobs.MailPayload) {
	task, err := jobs.NewMailTask(kind, payload)
	if err != nil {
		s.logger.Error("mail task build failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("mail task enqueue failed", zap.String("kind", kind), zap.Error(err))
	}
}

func buildUsername(firstName, lastName string) string {
	first := strings.ToLower(strings.TrimSpace(firstName))
	last := strings.ToLower(strings.TrimSpace(lastName))
	username := strings.Trim(first+"."+last, ".")
	return strings.ReplaceAll(username, " ", ".")
}
