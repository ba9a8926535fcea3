package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/jobs"
)

type authFixture struct {
	service       *AuthService
	users         *fakeUserRepo
	sessions      *fakeSessionRepo
	loginHistory  *fakeLoginHistoryRepo
	notifications *fakeNotificationRepo
	queue         *fakeQueue
	hasher        *auth.PasswordHasher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	loginHistory := &fakeLoginHistoryRepo{}
	notifications := &fakeNotificationRepo{}
	queue := &fakeQueue{}
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	svc := NewAuthService(AuthDependencies{
		Users:         users,
		Sessions:      sessions,
		LoginHistory:  loginHistory,
		Notifications: notifications,
		Queue:         queue,
		Tokens:        auth.NewTokenManager("test-secret", time.Hour),
		Hasher:        hasher,
		ResetTTL:      time.Hour,
		VerifyTTL:     24 * time.Hour,
		Logger:        zap.NewNop(),
	})
	return &authFixture{
		service:       svc,
		users:         users,
		sessions:      sessions,
		loginHistory:  loginHistory,
		notifications: notifications,
		queue:         queue,
		hasher:        hasher,
	}
}

func (fx *authFixture) addVerifiedUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := fx.hasher.Hash(password)
	require.NoError(t, err)
	return fx.users.add(domain.User{
		FirstName:     "Test",
		LastName:      "User",
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.RoleClient,
		IsActive:      true,
		EmailVerified: true,
	})
}

func TestSignUp(t *testing.T) {
	fx := newAuthFixture(t)

	user, err := fx.service.SignUp(context.Background(), SignUpInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "Ada@Example.com",
		Password:  "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, domain.RoleClient, user.Role)
	assert.Equal(t, "ada.lovelace", user.Username)
	assert.False(t, user.EmailVerified)
	require.NotNil(t, user.VerificationTokenHash)

	assert.ElementsMatch(t,
		[]string{jobs.TypeMailWelcome, jobs.TypeMailVerification},
		fx.queue.typesEnqueued())
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	fx := newAuthFixture(t)
	fx.addVerifiedUser(t, "ada@example.com", "pw")

	_, err := fx.service.SignUp(context.Background(), SignUpInput{
		FirstName: "Ada", LastName: "L",
		Email: "ADA@example.com", Password: "pw",
	})
	assert.Equal(t, http.StatusConflict, errStatus(t, err))
}

func TestSignIn(t *testing.T) {
	fx := newAuthFixture(t)
	user := fx.addVerifiedUser(t, "ada@example.com", "correct horse")

	result, err := fx.service.SignIn(context.Background(), SignInInput{
		Email:     "ada@example.com",
		Password:  "correct horse",
		IP:        "203.0.113.7",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)

	// session stored under the token hash, never the raw token
	session, err := fx.sessions.GetByTokenHash(context.Background(), auth.HashToken(result.Token))
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	require.Len(t, fx.loginHistory.entries, 1)
	assert.Equal(t, "203.0.113.7", fx.loginHistory.entries[0].IP)

	stored, err := fx.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginIP)
	assert.Equal(t, "203.0.113.7", *stored.LastLoginIP)
}

func TestSignInAlertsOnNewDeviceOnly(t *testing.T) {
	fx := newAuthFixture(t)
	user := fx.addVerifiedUser(t, "ada@example.com", "pw")

	input := SignInInput{Email: "ada@example.com", Password: "pw", IP: "203.0.113.7", UserAgent: "test-agent"}
	_, err := fx.service.SignIn(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, fx.queue.typesEnqueued(), jobs.TypeMailNewDeviceAlert)
	assert.Len(t, fx.notifications.forUser(user.ID), 1)

	fx.queue.tasks = nil
	_, err = fx.service.SignIn(context.Background(), input)
	require.NoError(t, err)
	assert.NotContains(t, fx.queue.typesEnqueued(), jobs.TypeMailNewDeviceAlert)
	assert.Len(t, fx.notifications.forUser(user.ID), 1)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	fx := newAuthFixture(t)
	fx.addVerifiedUser(t, "ada@example.com", "pw")

	_, err := fx.service.SignIn(context.Background(), SignInInput{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))

	_, err = fx.service.SignIn(context.Background(), SignInInput{Email: "nobody@example.com", Password: "pw"})
	assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))
}

func TestSignInRejectsDisabledAccounts(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.User)
	}{
		{"deactivated", func(u *domain.User) { u.IsActive = false }},
		{"blocked", func(u *domain.User) { u.IsBlocked = true }},
		{"suspicious", func(u *domain.User) { u.IsSuspicious = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newAuthFixture(t)
			user := fx.addVerifiedUser(t, "ada@example.com", "pw")
			tc.mutate(user)
			fx.users.add(*user)

			_, err := fx.service.SignIn(context.Background(), SignInInput{Email: "ada@example.com", Password: "pw"})
			assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))
		})
	}
}

func TestSignInUnverifiedResendsVerification(t *testing.T) {
	fx := newAuthFixture(t)
	user := fx.addVerifiedUser(t, "ada@example.com", "pw")
	user.EmailVerified = false
	fx.users.add(*user)

	_, err := fx.service.SignIn(context.Background(), SignInInput{Email: "ada@example.com", Password: "pw"})
	assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))
	assert.Equal(t, []string{jobs.TypeMailVerification}, fx.queue.typesEnqueued())

	stored, getErr := fx.users.GetByID(context.Background(), user.ID)
	require.NoError(t, getErr)
	require.NotNil(t, stored.VerificationTokenHash)
	assert.Empty(t, fx.sessions.sessions)
}

func TestSignOutIsIdempotent(t *testing.T) {
	fx := newAuthFixture(t)
	require.NoError(t, fx.service.SignOut(context.Background(), "never-issued-token"))
	require.NoError(t, fx.service.SignOut(context.Background(), ""))
}

func TestPasswordResetFlow(t *testing.T) {
	fx := newAuthFixture(t)
	user := fx.addVerifiedUser(t, "ada@example.com", "old password")

	// establish a session so we can observe revocation
	result, err := fx.service.SignIn(context.Background(), SignInInput{
		Email: "ada@example.com", Password: "old password", IP: "203.0.113.7", UserAgent: "ua",
	})
	require.NoError(t, err)

	require.NoError(t, fx.service.ForgotPassword(context.Background(), "ada@example.com"))
	assert.Contains(t, fx.queue.typesEnqueued(), jobs.TypeMailForgotPassword)

	stored, err := fx.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)

	// the service only ever sees the hash; tests reach into the fake to
	// recover a raw token that maps onto it
	raw := rawTokenFor(t, fx, user.ID)
	require.NoError(t, fx.service.ResetPassword(context.Background(), raw, "new password"))

	_, err = fx.sessions.GetByTokenHash(context.Background(), auth.HashToken(result.Token))
	assert.Error(t, err)
	assert.Contains(t, fx.queue.typesEnqueued(), jobs.TypeMailPasswordChanged)

	_, err = fx.service.SignIn(context.Background(), SignInInput{Email: "ada@example.com", Password: "new password"})
	require.NoError(t, err)
}

// rawTokenFor swaps the stored reset hash for one derived from a known
// raw value so the reset can be driven end to end.
func rawTokenFor(t *testing.T, fx *authFixture, userID string) string {
	t.Helper()
	raw, hash, err := auth.NewRandomToken()
	require.NoError(t, err)
	stored, err := fx.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	stored.ResetTokenHash = &hash
	fx.users.add(*stored)
	return raw
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	fx := newAuthFixture(t)
	err := fx.service.ResetPassword(context.Background(), "bogus", "new password")
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	fx := newAuthFixture(t)
	err := fx.service.ForgotPassword(context.Background(), "ghost@example.com")
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))
}

func TestVerifyAccount(t *testing.T) {
	fx := newAuthFixture(t)
	raw, hash, err := auth.NewRandomToken()
	require.NoError(t, err)
	expires := time.Now().Add(time.Hour)
	user := fx.users.add(domain.User{
		Email: "ada@example.com", Role: domain.RoleClient, IsActive: true,
		VerificationTokenHash: &hash, VerificationTokenExpires: &expires,
	})

	require.NoError(t, fx.service.VerifyAccount(context.Background(), raw))

	stored, err := fx.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationTokenHash)
	assert.Contains(t, fx.queue.typesEnqueued(), jobs.TypeMailAccountVerified)
}

func TestVerifyAccountRejectsExpiredToken(t *testing.T) {
	fx := newAuthFixture(t)
	raw, hash, err := auth.NewRandomToken()
	require.NoError(t, err)
	expires := time.Now().Add(-time.Minute)
	fx.users.add(domain.User{
		Email: "ada@example.com", Role: domain.RoleClient, IsActive: true,
		VerificationTokenHash: &hash, VerificationTokenExpires: &expires,
	})

	err = fx.service.VerifyAccount(context.Background(), raw)
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
}

func TestChangePassword(t *testing.T) {
	fx := newAuthFixture(t)
	user := fx.addVerifiedUser(t, "ada@example.com", "old password")

	err := fx.service.ChangePassword(context.Background(), user.ID, "wrong", "next")
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))

	require.NoError(t, fx.service.ChangePassword(context.Background(), user.ID, "old password", "next"))
	_, err = fx.service.SignIn(context.Background(), SignInInput{Email: "ada@example.com", Password: "next"})
	require.NoError(t, err)
}
