package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/digital-library/internal/model"
	"github.com/iliyamo/digital-library/internal/repository"
	"github.com/iliyamo/digital-library/internal/utils"
)

type ledgerEntry struct {
	ref model.PrincipalRef
	exp time.Time
}

// fakeLedger mirrors the semantics of repository.TokenRepo on a map:
// FindValid and Rotate treat unknown or expired hashes as an invalid
// session, and Rotate consumes the old row before inserting the new one.
type fakeLedger struct {
	rows map[string]ledgerEntry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]ledgerEntry{}}
}

func (f *fakeLedger) Save(_ context.Context, hash string, ref model.PrincipalRef, exp time.Time) error {
	f.rows[hash] = ledgerEntry{ref: ref, exp: exp}
	return nil
}

func (f *fakeLedger) FindValid(_ context.Context, hash string) (model.PrincipalRef, error) {
	e, ok := f.rows[hash]
	if !ok || !e.exp.After(time.Now()) {
		return model.PrincipalRef{}, repository.ErrInvalidSession
	}
	return e.ref, nil
}

func (f *fakeLedger) Rotate(_ context.Context, oldHash, newHash string, ref model.PrincipalRef, exp time.Time) error {
	e, ok := f.rows[oldHash]
	if !ok || !e.exp.After(time.Now()) {
		return repository.ErrInvalidSession
	}
	delete(f.rows, oldHash)
	f.rows[newHash] = ledgerEntry{ref: ref, exp: exp}
	return nil
}

func (f *fakeLedger) Invalidate(_ context.Context, hash string) error {
	delete(f.rows, hash)
	return nil
}

func (f *fakeLedger) InvalidateAll(_ context.Context, ref model.PrincipalRef) error {
	for h, e := range f.rows {
		if e.ref == ref {
			delete(f.rows, h)
		}
	}
	return nil
}

type fakePrincipals struct {
	byRef map[model.PrincipalRef]model.Principal
}

func (f *fakePrincipals) Find(_ context.Context, ref model.PrincipalRef) (model.Principal, error) {
	p, ok := f.byRef[ref]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return p, nil
}

func newTestService(t *testing.T) (*Service, *fakeLedger, *fakePrincipals) {
	t.Helper()
	ledger := newFakeLedger()
	principals := &fakePrincipals{byRef: map[model.PrincipalRef]model.Principal{}}
	svc := NewService(Config{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7}, ledger, principals)
	return svc, ledger, principals
}

func testUser(id uint64, role string) model.Principal {
	return model.UserPrincipal(model.User{ID: id, Email: "u@example.com", Role: role})
}

func TestIssueStoresHashNotRaw(t *testing.T) {
	svc, ledger, principals := newTestService(t)
	p := testUser(1, model.RoleUser)
	principals.byRef[p.Ref()] = p

	pair, err := svc.Issue(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, ledger.rows, 1)
	_, rawStored := ledger.rows[pair.Refresh.Raw]
	assert.False(t, rawStored, "ledger must never hold the raw token")
	_, hashStored := ledger.rows[utils.HashRefreshRaw(pair.Refresh.Raw)]
	assert.True(t, hashStored)

	claims, err := svc.VerifyAccess(pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, p.Ref(), claims.Ref)
	assert.Equal(t, model.RoleUser, claims.Role)
}

func TestRotateIsSingleUse(t *testing.T) {
	svc, _, principals := newTestService(t)
	p := testUser(1, model.RoleUser)
	principals.byRef[p.Ref()] = p

	pair, err := svc.Issue(context.Background(), p)
	require.NoError(t, err)

	got, next, err := svc.Rotate(context.Background(), pair.Refresh.Raw, model.KindUser)
	require.NoError(t, err)
	assert.Equal(t, p.Ref(), got.Ref())
	assert.NotEqual(t, pair.Refresh.Raw, next.Refresh.Raw)

	// Replaying the consumed token must fail, while the new one works.
	_, _, err = svc.Rotate(context.Background(), pair.Refresh.Raw, model.KindUser)
	assert.ErrorIs(t, err, repository.ErrInvalidSession)

	_, _, err = svc.Rotate(context.Background(), next.Refresh.Raw, model.KindUser)
	assert.NoError(t, err)
}

func TestRotateReflectsCurrentRole(t *testing.T) {
	svc, _, principals := newTestService(t)
	p := testUser(9, model.RoleUser)
	principals.byRef[p.Ref()] = p

	pair, err := svc.Issue(context.Background(), p)
	require.NoError(t, err)

	// The user joins an institution between issuance and refresh.
	principals.byRef[p.Ref()] = testUser(9, model.RoleStudent)

	_, next, err := svc.Rotate(context.Background(), pair.Refresh.Raw, model.KindUser)
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(next.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, claims.Role)
}

func TestRotateDeletedPrincipal(t *testing.T) {
	svc, _, principals := newTestService(t)
	p := testUser(3, model.RoleUser)
	principals.byRef[p.Ref()] = p

	pair, err := svc.Issue(context.Background(), p)
	require.NoError(t, err)

	delete(principals.byRef, p.Ref())

	_, _, err = svc.Rotate(context.Background(), pair.Refresh.Raw, model.KindUser)
	assert.ErrorIs(t, err, repository.ErrInvalidSession)
}

func TestRotateWrongKindLeavesTokenLive(t *testing.T) {
	svc, _, principals := newTestService(t)
	p := testUser(4, model.RoleUser)
	principals.byRef[p.Ref()] = p

	pair, err := svc.Issue(context.Background(), p)
	require.NoError(t, err)

	// Presenting the token for the wrong kind is refused without
	// consuming it, so the legitimate client can still rotate.
	_, _, err = svc.Rotate(context.Background(), pair.Refresh.Raw, model.KindAdmin)
	assert.ErrorIs(t, err, repository.ErrInvalidSession)

	_, _, err = svc.Rotate(context.Background(), pair.Refresh.Raw, model.KindUser)
	assert.NoError(t, err)
}

func TestRotateUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.Rotate(context.Background(), "never-issued", model.KindUser)
	assert.ErrorIs(t, err, repository.ErrInvalidSession)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, ledger, principals := newTestService(t)
	p := testUser(5, model.RoleUser)
	principals.byRef[p.Ref()] = p

	pair, err := svc.Issue(context.Background(), p)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), pair.Refresh.Raw))
	assert.Empty(t, ledger.rows)

	// Second logout with the same token, and logout with nothing at all,
	// both succeed silently.
	assert.NoError(t, svc.Logout(context.Background(), pair.Refresh.Raw))
	assert.NoError(t, svc.Logout(context.Background(), ""))
}

func TestLogoutAll(t *testing.T) {
	svc, ledger, principals := newTestService(t)
	p := testUser(5, model.RoleUser)
	other := testUser(6, model.RoleUser)
	principals.byRef[p.Ref()] = p
	principals.byRef[other.Ref()] = other

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(context.Background(), p)
		require.NoError(t, err)
	}
	keep, err := svc.Issue(context.Background(), other)
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAll(context.Background(), p.Ref()))
	require.Len(t, ledger.rows, 1)
	_, ok := ledger.rows[utils.HashRefreshRaw(keep.Refresh.Raw)]
	assert.True(t, ok, "other principals keep their sessions")
}
