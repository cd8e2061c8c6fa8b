package session

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/security"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/google/uuid"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

func TestIssue(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	meta := Metadata{DeviceName: "Laptop", IPAddress: "192.0.2.10", UserAgent: "curl/8"}

	pair, err := mgr.Issue(t.Context(), account, meta, true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pair.AccessToken).NotTo(BeEmpty())
	g.Expect(pair.RefreshToken).NotTo(BeEmpty())

	stored := store.byID[pair.SessionID]
	g.Expect(stored).NotTo(BeNil())
	g.Expect(stored.TokenHash).To(Equal(security.HashToken(pair.RefreshToken)))
	g.Expect(stored.AccountID).To(Equal(account.ID))
	g.Expect(stored.DeviceName).To(Equal("Laptop"))
	g.Expect(stored.MFAVerified).To(BeTrue())
	g.Expect(stored.Active(time.Now())).To(BeTrue())
	g.Expect(stored.ExpiresAt.Sub(time.Now())).
		To(BeNumerically("~", env.RefreshTokenValidDuration(), time.Minute))
}

func TestRefresh_RotatesToken(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	pair, err := mgr.Issue(t.Context(), account, Metadata{DeviceName: "Laptop"}, false)
	g.Expect(err).NotTo(HaveOccurred())

	next, err := mgr.Refresh(t.Context(), pair.RefreshToken, Metadata{IPAddress: "198.51.100.7"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(next.RefreshToken).NotTo(Equal(pair.RefreshToken))
	g.Expect(next.SessionID).NotTo(Equal(pair.SessionID))

	old := store.byID[pair.SessionID]
	g.Expect(old.RotatedAt).NotTo(BeNil())
	g.Expect(old.RevokedAt).To(BeNil())

	successor := store.byID[next.SessionID]
	g.Expect(successor.FamilyID).To(Equal(old.FamilyID))
	g.Expect(successor.DeviceName).To(Equal("Laptop"))
	g.Expect(successor.IPAddress).To(Equal("198.51.100.7"))
	g.Expect(successor.Active(time.Now())).To(BeTrue())
}

func TestRefresh_ReuseRevokesFamily(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	pair, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())
	next, err := mgr.Refresh(t.Context(), pair.RefreshToken, Metadata{})
	g.Expect(err).NotTo(HaveOccurred())

	// Presenting the rotated token again is treated as theft.
	_, err = mgr.Refresh(t.Context(), pair.RefreshToken, Metadata{})
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))

	// The whole family is dead, including the freshly minted successor.
	g.Expect(store.byID[next.SessionID].RevokedAt).NotTo(BeNil())
	_, err = mgr.Refresh(t.Context(), next.RefreshToken, Metadata{})
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
}

func TestRefresh_UnknownTokenRevokesNothing(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	pair, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())

	_, err = mgr.Refresh(t.Context(), "never-issued", Metadata{})
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
	g.Expect(store.byID[pair.SessionID].Active(time.Now())).To(BeTrue())
}

func TestRefresh_ExpiredToken(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	pair, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())
	store.byID[pair.SessionID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = mgr.Refresh(t.Context(), pair.RefreshToken, Metadata{})
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
	// Expiry is not reuse, the family stays untouched.
	g.Expect(store.byID[pair.SessionID].RevokedAt).To(BeNil())
}

func TestRefresh_ConcurrentUseHasOneWinner(t *testing.T) {
	g := NewWithT(t)
	mgr, _, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	pair, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = mgr.Refresh(context.Background(), pair.RefreshToken, Metadata{})
		}()
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
		}
	}
	g.Expect(won).To(Equal(1))
}

func TestLogout(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	first, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())
	second, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())

	count, err := mgr.Logout(t.Context(), first.RefreshToken, false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(count).To(Equal(int64(1)))
	g.Expect(store.byID[first.SessionID].RevokedAt).NotTo(BeNil())
	g.Expect(store.byID[second.SessionID].RevokedAt).To(BeNil())

	_, err = mgr.Logout(t.Context(), "never-issued", false)
	g.Expect(err).To(MatchError(apierrors.ErrInvalidToken))
}

func TestLogout_AllDevices(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	other := accounts.add("bob@example.com")
	first, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())
	second, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())
	otherPair, err := mgr.Issue(t.Context(), other, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())

	count, err := mgr.Logout(t.Context(), first.RefreshToken, true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(count).To(Equal(int64(2)))
	g.Expect(store.byID[second.SessionID].RevokedAt).NotTo(BeNil())
	g.Expect(store.byID[otherPair.SessionID].RevokedAt).To(BeNil())
}

func TestListActive(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	first, err := mgr.Issue(t.Context(), account, Metadata{DeviceName: "Laptop"}, false)
	g.Expect(err).NotTo(HaveOccurred())
	second, err := mgr.Issue(t.Context(), account, Metadata{DeviceName: "Phone"}, false)
	g.Expect(err).NotTo(HaveOccurred())
	store.byID[first.SessionID].LastUsedAt = time.Now().Add(-time.Hour)
	store.byID[second.SessionID].LastUsedAt = time.Now()

	_, err = mgr.Logout(t.Context(), second.RefreshToken, false)
	g.Expect(err).NotTo(HaveOccurred())

	sessions, err := mgr.ListActive(t.Context(), account.ID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sessions).To(HaveLen(1))
	g.Expect(sessions[0].ID).To(Equal(first.SessionID))
}

func TestRevoke(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	other := accounts.add("bob@example.com")
	pair, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())

	// Someone else's session id must look exactly like a missing one.
	err = mgr.Revoke(t.Context(), other.ID, pair.SessionID)
	g.Expect(err).To(MatchError(apierrors.ErrSessionNotFound))
	g.Expect(store.byID[pair.SessionID].RevokedAt).To(BeNil())

	g.Expect(mgr.Revoke(t.Context(), account.ID, pair.SessionID)).To(Succeed())
	g.Expect(store.byID[pair.SessionID].RevokedAt).NotTo(BeNil())

	err = mgr.Revoke(t.Context(), account.ID, pair.SessionID)
	g.Expect(err).To(MatchError(apierrors.ErrSessionNotFound))
}

func TestRevokeOthers(t *testing.T) {
	g := NewWithT(t)
	mgr, store, accounts := newTestManager(t)
	account := accounts.add("alice@example.com")
	keep, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())
	dropped, err := mgr.Issue(t.Context(), account, Metadata{}, false)
	g.Expect(err).NotTo(HaveOccurred())

	count, err := mgr.RevokeOthers(t.Context(), account.ID, keep.SessionID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(count).To(Equal(int64(1)))
	g.Expect(store.byID[keep.SessionID].RevokedAt).To(BeNil())
	g.Expect(store.byID[dropped.SessionID].RevokedAt).NotTo(BeNil())
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *fakeAccounts) {
	store := &fakeStore{byID: map[uuid.UUID]*types.Session{}}
	accounts := &fakeAccounts{byID: map[uuid.UUID]*types.UserAccount{}}
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "c2VjcmV0LXNpZ25pbmcta2V5LWZvci10ZXN0cw==")
	t.Setenv("DEEPREF_HOST", "http://localhost:8080")
	env.Initialize()
	mgr := NewManager(store, accounts, zap.NewNop())
	mgr.sign = func(userAccount types.UserAccount, sessionID uuid.UUID, mfaVerified bool) (string, error) {
		return fmt.Sprintf("signed:%v:%v:%v", userAccount.ID, sessionID, mfaVerified), nil
	}
	return mgr, store, accounts
}

type fakeAccounts struct {
	byID map[uuid.UUID]*types.UserAccount
}

func (a *fakeAccounts) add(email string) *types.UserAccount {
	account := &types.UserAccount{ID: uuid.New(), Email: email}
	a.byID[account.ID] = account
	return account
}

func (a *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*types.UserAccount, error) {
	if account, ok := a.byID[id]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, apierrors.ErrNotFound
}

// fakeStore mimics the conditional-update semantics of the database layer,
// including the single-winner guarantee of Rotate.
type fakeStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*types.Session
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeStore) Create(_ context.Context, session *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	session.LastUsedAt = session.CreatedAt
	copied := *session
	s.byID[session.ID] = &copied
	return nil
}

func (s *fakeStore) GetByTokenHash(_ context.Context, tokenHash []byte) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session := s.findByTokenHash(tokenHash); session != nil {
		copied := *session
		return &copied, nil
	}
	return nil, apierrors.ErrNotFound
}

func (s *fakeStore) Rotate(_ context.Context, tokenHash []byte) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.findByTokenHash(tokenHash)
	if session == nil || !session.Active(time.Now()) {
		return nil, apierrors.ErrNotFound
	}
	now := time.Now()
	session.RotatedAt = &now
	session.LastUsedAt = now
	copied := *session
	return &copied, nil
}

func (s *fakeStore) ListActive(_ context.Context, accountID uuid.UUID) ([]types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []types.Session
	for _, session := range s.byID {
		if session.AccountID == accountID && session.Active(time.Now()) {
			result = append(result, *session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastUsedAt.After(result[j].LastUsedAt)
	})
	return result, nil
}

func (s *fakeStore) Revoke(_ context.Context, accountID uuid.UUID, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[sessionID]
	if !ok || session.AccountID != accountID || session.RevokedAt != nil {
		return apierrors.ErrNotFound
	}
	now := time.Now()
	session.RevokedAt = &now
	return nil
}

func (s *fakeStore) RevokeByTokenHash(_ context.Context, tokenHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.findByTokenHash(tokenHash)
	if session == nil || session.RevokedAt != nil {
		return apierrors.ErrNotFound
	}
	now := time.Now()
	session.RevokedAt = &now
	return nil
}

func (s *fakeStore) RevokeFamily(_ context.Context, familyID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	now := time.Now()
	for _, session := range s.byID {
		if session.FamilyID == familyID && session.RevokedAt == nil {
			session.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) RevokeAll(_ context.Context, accountID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	now := time.Now()
	for _, session := range s.byID {
		if session.AccountID == accountID && session.RevokedAt == nil {
			session.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) RevokeOthers(
	_ context.Context, accountID uuid.UUID, keepSessionID uuid.UUID,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	now := time.Now()
	for _, session := range s.byID {
		if session.AccountID == accountID && session.ID != keepSessionID && session.RevokedAt == nil {
			session.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) findByTokenHash(tokenHash []byte) *types.Session {
	for _, session := range s.byID {
		if bytes.Equal(session.TokenHash, tokenHash) {
			return session
		}
	}
	return nil
}
