package credentials_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/credentials"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/mail"
	"github.com/deepref-sh/deepref/internal/security"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/deepref-sh/deepref/internal/validation"
	"github.com/google/uuid"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

const validPassword = "Zq7#mPxwK"
const otherValidPassword = "T9!kWqRzB"

func TestRequestReset_UnknownEmail(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, _, mailer := newTestManager(t)

	g.Expect(mgr.RequestReset(t.Context(), "nobody@example.com")).To(Succeed())
	g.Expect(mailer.sent).To(BeEmpty())
	g.Expect(accounts.byID).To(BeEmpty())
}

func TestRequestReset_IssuesTokenAndMail(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, _, mailer := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)

	g.Expect(mgr.RequestReset(t.Context(), "alice@example.com")).To(Succeed())

	stored := accounts.byID[account.ID]
	g.Expect(stored.PasswordResetToken).NotTo(BeNil())
	g.Expect(stored.PasswordResetExpiresAt).NotTo(BeNil())
	g.Expect(stored.PasswordResetExpiresAt.Sub(time.Now())).
		To(BeNumerically("~", env.ResetTokenValidDuration(), time.Minute))
	g.Expect(mailer.sent).To(HaveLen(1))
	g.Expect(mailer.sent[0].To).To(Equal("alice@example.com"))
	g.Expect(mailer.sent[0].Body).To(ContainSubstring(*stored.PasswordResetToken))
}

func TestRequestReset_SupersedesPreviousToken(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, _, _ := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)

	g.Expect(mgr.RequestReset(t.Context(), "alice@example.com")).To(Succeed())
	first := *accounts.byID[account.ID].PasswordResetToken
	g.Expect(mgr.RequestReset(t.Context(), "alice@example.com")).To(Succeed())
	second := *accounts.byID[account.ID].PasswordResetToken

	g.Expect(second).NotTo(Equal(first))
	_, err := mgr.ValidateResetToken(t.Context(), first)
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
	_, err = mgr.ValidateResetToken(t.Context(), second)
	g.Expect(err).NotTo(HaveOccurred())
}

func TestValidateResetToken(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, _, _ := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)
	g.Expect(mgr.RequestReset(t.Context(), "alice@example.com")).To(Succeed())
	token := *accounts.byID[account.ID].PasswordResetToken

	got, err := mgr.ValidateResetToken(t.Context(), token)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got.ID).To(Equal(account.ID))

	_, err = mgr.ValidateResetToken(t.Context(), "")
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
	_, err = mgr.ValidateResetToken(t.Context(), "bogus")
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))

	expired := time.Now().Add(-time.Minute)
	accounts.byID[account.ID].PasswordResetExpiresAt = &expired
	_, err = mgr.ValidateResetToken(t.Context(), token)
	g.Expect(err).To(MatchError(apierrors.ErrExpiredToken))
}

func TestResetPassword(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, sessions, mailer := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)
	accounts.byID[account.ID].FailedLoginAttempts = 3
	g.Expect(mgr.RequestReset(t.Context(), "alice@example.com")).To(Succeed())
	token := *accounts.byID[account.ID].PasswordResetToken
	mailer.sent = nil

	g.Expect(mgr.ResetPassword(t.Context(), token, otherValidPassword)).To(Succeed())

	stored := accounts.byID[account.ID]
	g.Expect(security.PasswordMatchesHash(otherValidPassword, stored.PasswordHash)).To(BeTrue())
	g.Expect(stored.PasswordResetToken).To(BeNil())
	g.Expect(stored.PasswordResetExpiresAt).To(BeNil())
	g.Expect(stored.PasswordChangedAt).NotTo(BeNil())
	g.Expect(stored.FailedLoginAttempts).To(BeZero())
	g.Expect(sessions.revokedAll).To(ContainElement(account.ID))
	g.Expect(mailer.sent).To(HaveLen(1))
	g.Expect(mailer.sent[0].Subject).To(ContainSubstring("password was changed"))

	// The token is single-use.
	err := mgr.ResetPassword(t.Context(), token, "xK2$pWrM9w")
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
}

func TestResetPassword_InvalidTokenReportedBeforeWeakPassword(t *testing.T) {
	g := NewWithT(t)
	mgr, _, _, _ := newTestManager(t)

	// The token is checked first, so a bogus token with a weak password
	// surfaces as an invalid token, not as a policy violation.
	err := mgr.ResetPassword(t.Context(), "definitely-not-a-valid-token", "weak")
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
}

func TestResetPassword_RejectsWeakPassword(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, sessions, _ := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)
	g.Expect(mgr.RequestReset(t.Context(), "alice@example.com")).To(Succeed())
	token := *accounts.byID[account.ID].PasswordResetToken

	err := mgr.ResetPassword(t.Context(), token, "short")
	var vErr *validation.ValidationFailedError
	g.Expect(err).To(BeAssignableToTypeOf(vErr))
	g.Expect(sessions.revokedAll).To(BeEmpty())

	// A rejected attempt must not consume the token.
	_, err = mgr.ValidateResetToken(t.Context(), token)
	g.Expect(err).NotTo(HaveOccurred())
}

func TestResetPassword_RejectsSamePassword(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, _, _ := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)
	g.Expect(mgr.RequestReset(t.Context(), "alice@example.com")).To(Succeed())
	token := *accounts.byID[account.ID].PasswordResetToken

	err := mgr.ResetPassword(t.Context(), token, validPassword)
	g.Expect(err).To(MatchError(apierrors.ErrSamePassword))
}

func TestChangePassword(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, sessions, mailer := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)
	sessionID := uuid.New()

	err := mgr.ChangePassword(t.Context(), account.ID, sessionID, validPassword, otherValidPassword)
	g.Expect(err).NotTo(HaveOccurred())

	stored := accounts.byID[account.ID]
	g.Expect(security.PasswordMatchesHash(otherValidPassword, stored.PasswordHash)).To(BeTrue())
	g.Expect(stored.PasswordChangedAt).NotTo(BeNil())
	g.Expect(sessions.revokedOthers).To(HaveKeyWithValue(account.ID, sessionID))
	g.Expect(sessions.revokedAll).To(BeEmpty())
	g.Expect(mailer.sent).To(HaveLen(1))
}

func TestChangePassword_Failures(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, sessions, _ := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)
	sessionID := uuid.New()

	err := mgr.ChangePassword(t.Context(), account.ID, sessionID, "WrongPw1!", otherValidPassword)
	g.Expect(err).To(MatchError(apierrors.ErrInvalidCredentials))

	err = mgr.ChangePassword(t.Context(), account.ID, sessionID, validPassword, validPassword)
	g.Expect(err).To(MatchError(apierrors.ErrSamePassword))

	err = mgr.ChangePassword(t.Context(), account.ID, sessionID, validPassword, "weak")
	var vErr *validation.ValidationFailedError
	g.Expect(err).To(BeAssignableToTypeOf(vErr))

	err = mgr.ChangePassword(t.Context(), uuid.New(), sessionID, validPassword, otherValidPassword)
	g.Expect(err).To(MatchError(apierrors.ErrNotFound))

	accounts.byID[account.ID].PasswordHash = nil
	err = mgr.ChangePassword(t.Context(), account.ID, sessionID, validPassword, otherValidPassword)
	g.Expect(err).To(MatchError(apierrors.ErrNoPasswordSet))

	g.Expect(sessions.revokedOthers).To(BeEmpty())
}

func TestWasRecentlyChanged(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, _, _ := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)

	recent, err := mgr.WasRecentlyChanged(t.Context(), account.ID, time.Hour)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(recent).To(BeFalse())

	changedAt := time.Now().Add(-10 * time.Minute)
	accounts.byID[account.ID].PasswordChangedAt = &changedAt
	recent, err = mgr.WasRecentlyChanged(t.Context(), account.ID, time.Hour)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(recent).To(BeTrue())

	recent, err = mgr.WasRecentlyChanged(t.Context(), account.ID, 5*time.Minute)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(recent).To(BeFalse())

	recent, err = mgr.WasRecentlyChanged(t.Context(), uuid.New(), time.Hour)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(recent).To(BeFalse())
}

func TestTrackFailedLogin_LocksAtThreshold(t *testing.T) {
	g := NewWithT(t)
	mgr, accounts, _, _ := newTestManager(t)
	account := accounts.add(t, "alice@example.com", validPassword)

	for i := 1; i < env.LoginLockoutThreshold(); i++ {
		locked, err := mgr.TrackFailedLogin(t.Context(), account.ID)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(locked).To(BeFalse())
	}
	locked, err := mgr.TrackFailedLogin(t.Context(), account.ID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(locked).To(BeTrue())
	g.Expect(accounts.byID[account.ID].Locked(time.Now())).To(BeTrue())

	g.Expect(mgr.ResetFailedLogins(t.Context(), account.ID)).To(Succeed())
	g.Expect(accounts.byID[account.ID].FailedLoginAttempts).To(BeZero())
	g.Expect(accounts.byID[account.ID].Locked(time.Now())).To(BeFalse())
}

func newTestManager(t *testing.T) (*credentials.Manager, *fakeAccountStore, *fakeSessionRevoker, *fakeMailer) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "c2VjcmV0LXNpZ25pbmcta2V5LWZvci10ZXN0cw==")
	t.Setenv("DEEPREF_HOST", "http://localhost:8080")
	t.Setenv("BCRYPT_COST", "4")
	env.Initialize()
	accounts := &fakeAccountStore{byID: map[uuid.UUID]*types.UserAccount{}}
	sessions := &fakeSessionRevoker{revokedOthers: map[uuid.UUID]uuid.UUID{}}
	mailer := &fakeMailer{}
	return credentials.NewManager(accounts, sessions, mailer, zap.NewNop()), accounts, sessions, mailer
}

type fakeAccountStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*types.UserAccount
}

func (s *fakeAccountStore) add(t *testing.T, email, password string) *types.UserAccount {
	hash, err := security.HashPassword(password)
	NewWithT(t).Expect(err).NotTo(HaveOccurred())
	account := &types.UserAccount{
		ID:           uuid.New(),
		CreatedAt:    time.Now(),
		Email:        email,
		PasswordHash: hash,
	}
	s.byID[account.ID] = account
	return account
}

func (s *fakeAccountStore) GetByID(_ context.Context, id uuid.UUID) (*types.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.byID[id]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, apierrors.ErrNotFound
}

func (s *fakeAccountStore) GetByEmail(_ context.Context, email string) (*types.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.byID {
		if strings.EqualFold(account.Email, email) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apierrors.ErrNotFound
}

func (s *fakeAccountStore) GetByResetToken(_ context.Context, token string) (*types.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.byID {
		if account.PasswordResetToken != nil && *account.PasswordResetToken == token {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apierrors.ErrNotFound
}

func (s *fakeAccountStore) SetPasswordResetToken(
	_ context.Context, id uuid.UUID, token string, expiresAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return apierrors.ErrNotFound
	}
	account.PasswordResetToken = &token
	account.PasswordResetExpiresAt = &expiresAt
	return nil
}

func (s *fakeAccountStore) CompletePasswordReset(
	_ context.Context, id uuid.UUID, passwordHash []byte,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return apierrors.ErrNotFound
	}
	now := time.Now()
	account.PasswordHash = passwordHash
	account.PasswordResetToken = nil
	account.PasswordResetExpiresAt = nil
	account.PasswordChangedAt = &now
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	return nil
}

func (s *fakeAccountStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return apierrors.ErrNotFound
	}
	now := time.Now()
	account.PasswordHash = passwordHash
	account.PasswordChangedAt = &now
	return nil
}

func (s *fakeAccountStore) IncrementFailedLoginAttempts(
	_ context.Context, id uuid.UUID, threshold int, lockoutDuration time.Duration,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return false, apierrors.ErrNotFound
	}
	account.FailedLoginAttempts++
	if account.FailedLoginAttempts >= threshold {
		lockedUntil := time.Now().Add(lockoutDuration)
		account.LockedUntil = &lockedUntil
		return true, nil
	}
	return false, nil
}

func (s *fakeAccountStore) ResetFailedLoginAttempts(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return apierrors.ErrNotFound
	}
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	return nil
}

type fakeSessionRevoker struct {
	revokedAll    []uuid.UUID
	revokedOthers map[uuid.UUID]uuid.UUID
}

func (s *fakeSessionRevoker) RevokeAll(_ context.Context, accountID uuid.UUID) (int64, error) {
	s.revokedAll = append(s.revokedAll, accountID)
	return 1, nil
}

func (s *fakeSessionRevoker) RevokeOthers(
	_ context.Context, accountID uuid.UUID, keepSessionID uuid.UUID,
) (int64, error) {
	s.revokedOthers[accountID] = keepSessionID
	return 1, nil
}

type fakeMailer struct {
	sent []mail.Mail
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Mail) error {
	m.sent = append(m.sent, msg)
	return nil
}
