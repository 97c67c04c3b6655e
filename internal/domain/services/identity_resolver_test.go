package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/memory"
)

const testMappingKey = "demo:uid"

type resolverFixture struct {
	store    *memory.Store
	repos    *repositories.Repositories
	accounts *AccountService
	resolver *IdentityResolver
}

func newResolverFixture() *resolverFixture {
	store := memory.NewStore()
	repos := store.Repositories()
	accounts := NewAccountService(repos.Users, repos.Audit)
	return &resolverFixture{
		store:    store,
		repos:    repos,
		accounts: accounts,
		resolver: NewIdentityResolver(repos.Identities, repos.Users, accounts, repos.Audit),
	}
}

// identityRepoStub wraps a real repository and injects failures
type identityRepoStub struct {
	repositories.IdentityRepository
	getErr    error
	linkErr   error
	staleRead bool
	links     atomic.Int32
}

func (s *identityRepoStub) GetByExternalID(ctx context.Context, key, ext string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	if s.staleRead {
		return "", nil
	}
	return s.IdentityRepository.GetByExternalID(ctx, key, ext)
}

func (s *identityRepoStub) LinkIfAbsent(ctx context.Context, key, ext string, uid int64) (int64, error) {
	s.links.Add(1)
	if s.linkErr != nil {
		return 0, s.linkErr
	}
	return s.IdentityRepository.LinkIfAbsent(ctx, key, ext, uid)
}

// userRepoStub fails email lookups
type userRepoStub struct {
	repositories.UserRepository
	lookupErr error
	lookups   atomic.Int32
}

func (s *userRepoStub) LookupUIDByEmail(ctx context.Context, email string) (string, error) {
	s.lookups.Add(1)
	if s.lookupErr != nil {
		return "", s.lookupErr
	}
	return s.UserRepository.LookupUIDByEmail(ctx, email)
}

type failingCreator struct{ err error }

func (f failingCreator) CreateAccount(context.Context, NewAccount) (*entities.User, error) {
	return nil, f.err
}

func TestResolveCreatesThenReuses(t *testing.T) {
	fx := newResolverFixture()
	ctx := context.Background()
	id := auth.Identity{ExternalID: "ext-42", Username: "alice", Email: "alice@example.com"}

	first, err := fx.resolver.Resolve(ctx, testMappingKey, id)
	require.NoError(t, err)
	assert.Equal(t, BranchCreated, first.Branch)
	assert.Positive(t, first.UID)

	second, err := fx.resolver.Resolve(ctx, testMappingKey, id)
	require.NoError(t, err)
	assert.Equal(t, BranchExisting, second.Branch)
	assert.Equal(t, first.UID, second.UID)

	assert.Equal(t, 1, fx.store.UserCount())
	assert.Equal(t, 1, fx.store.MappingCount(testMappingKey))

	raw, err := fx.repos.Identities.GetByExternalID(ctx, testMappingKey, "ext-42")
	require.NoError(t, err)
	uid, ok := entities.ParseUID(raw)
	require.True(t, ok)
	assert.Equal(t, first.UID, uid)

	logs, err := fx.repos.Audit.ListRecent(ctx, 10)
	require.NoError(t, err)
	var linked *entities.AuditLog
	for _, entry := range logs {
		if entry.Action == entities.ActionIdentityLinked {
			linked = entry
		}
	}
	require.NotNil(t, linked)
	require.NotNil(t, linked.ResourceID)
	assert.Equal(t, "demo:uid[ext-42]", *linked.ResourceID)
}

func TestResolveMergesByEmail(t *testing.T) {
	fx := newResolverFixture()
	ctx := context.Background()

	owner := &entities.User{Username: "alice", Userslug: "alice", Email: "alice@example.com"}
	require.NoError(t, fx.repos.Users.Create(ctx, owner))

	merged, err := fx.resolver.Resolve(ctx, testMappingKey, auth.Identity{
		ExternalID: "ext-new", Username: "someone-else", Email: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, BranchMerged, merged.Branch)
	assert.Equal(t, owner.ID, merged.UID)

	again, err := fx.resolver.Resolve(ctx, testMappingKey, auth.Identity{ExternalID: "ext-new", Username: "x"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, again.UID)
	assert.Equal(t, BranchExisting, again.Branch)

	assert.Equal(t, 1, fx.store.UserCount(), "merge never creates an account")
	assert.Equal(t, 1, fx.store.MappingCount(testMappingKey))
}

func TestResolveWithoutEmailSkipsEmailLookup(t *testing.T) {
	fx := newResolverFixture()
	users := &userRepoStub{UserRepository: fx.repos.Users, lookupErr: errors.New("must not be called")}
	resolver := NewIdentityResolver(fx.repos.Identities, users, fx.accounts, nil)

	res, err := resolver.Resolve(context.Background(), testMappingKey, auth.Identity{ExternalID: "ext-1", Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, BranchCreated, res.Branch)
	assert.Equal(t, int32(0), users.lookups.Load())
}

func TestResolveTrimsUsername(t *testing.T) {
	fx := newResolverFixture()
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, testMappingKey, auth.Identity{ExternalID: "ext-1", Username: "  alice smith \n"})
	require.NoError(t, err)

	user, err := fx.repos.Users.GetByID(ctx, res.UID)
	require.NoError(t, err)
	assert.Equal(t, "alice smith", user.Username)
	assert.Equal(t, "alice-smith", user.Userslug)
}

func TestResolveLookupFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name       string
		identities func(base repositories.IdentityRepository) *identityRepoStub
		users      func(base repositories.UserRepository) repositories.UserRepository
	}{
		{
			name: "mapping lookup fails",
			identities: func(base repositories.IdentityRepository) *identityRepoStub {
				return &identityRepoStub{IdentityRepository: base, getErr: errors.New("connection refused")}
			},
			users: func(base repositories.UserRepository) repositories.UserRepository { return base },
		},
		{
			name: "email lookup fails",
			identities: func(base repositories.IdentityRepository) *identityRepoStub {
				return &identityRepoStub{IdentityRepository: base}
			},
			users: func(base repositories.UserRepository) repositories.UserRepository {
				return &userRepoStub{UserRepository: base, lookupErr: errors.New("i/o timeout")}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newResolverFixture()
			ids := tt.identities(fx.repos.Identities)
			resolver := NewIdentityResolver(ids, tt.users(fx.repos.Users), fx.accounts, nil)

			_, err := resolver.Resolve(context.Background(), testMappingKey, auth.Identity{
				ExternalID: "ext-1", Username: "bob", Email: "bob@example.com",
			})
			require.Error(t, err)

			var storageErr *StorageError
			require.ErrorAs(t, err, &storageErr)
			assert.Contains(t, storageErr.Op, "lookup")
			assert.Equal(t, 0, fx.store.UserCount())
			assert.Equal(t, int32(0), ids.links.Load())
		})
	}
}

func TestResolveCreationFailureWritesNoMapping(t *testing.T) {
	fx := newResolverFixture()
	ids := &identityRepoStub{IdentityRepository: fx.repos.Identities}
	resolver := NewIdentityResolver(ids, fx.repos.Users, failingCreator{err: errors.New("username taken")}, nil)

	_, err := resolver.Resolve(context.Background(), testMappingKey, auth.Identity{ExternalID: "ext-1", Username: "bob"})
	require.Error(t, err)
	assert.True(t, IsAccountCreationError(err))
	assert.False(t, IsStorageError(err))
	assert.Equal(t, int32(0), ids.links.Load())
	assert.Equal(t, 0, fx.store.MappingCount(testMappingKey))
}

func TestResolveEmptyUsernameIsCreationFailure(t *testing.T) {
	fx := newResolverFixture()
	_, err := fx.resolver.Resolve(context.Background(), testMappingKey, auth.Identity{ExternalID: "ext-1", Username: "<b></b>"})
	require.Error(t, err)
	assert.True(t, IsAccountCreationError(err))
	assert.ErrorIs(t, err, ErrInvalidUsername)
	assert.Equal(t, 0, fx.store.MappingCount(testMappingKey))
}

func TestResolveMappingWriteFailure(t *testing.T) {
	fx := newResolverFixture()
	ids := &identityRepoStub{IdentityRepository: fx.repos.Identities, linkErr: errors.New("READONLY")}
	resolver := NewIdentityResolver(ids, fx.repos.Users, fx.accounts, nil)

	_, err := resolver.Resolve(context.Background(), testMappingKey, auth.Identity{ExternalID: "ext-1", Username: "bob"})
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

func TestResolveNonNumericMappingFallsThrough(t *testing.T) {
	fx := newResolverFixture()
	ctx := context.Background()
	fx.repos.Identities.(*memory.IdentityRepository).Put(testMappingKey, "ext-1", "garbage")

	res, err := fx.resolver.Resolve(ctx, testMappingKey, auth.Identity{ExternalID: "ext-1", Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, BranchCreated, res.Branch)

	raw, err := fx.repos.Identities.GetByExternalID(ctx, testMappingKey, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, res.UID, mustParseUID(t, raw))
}

func TestResolveLostRaceReturnsStoredAccount(t *testing.T) {
	fx := newResolverFixture()
	ctx := context.Background()

	winner := &entities.User{Username: "winner", Userslug: "winner"}
	require.NoError(t, fx.repos.Users.Create(ctx, winner))
	_, err := fx.repos.Identities.LinkIfAbsent(ctx, testMappingKey, "ext-1", winner.ID)
	require.NoError(t, err)

	// A stale read makes this resolver believe the external id is unmapped.
	ids := &identityRepoStub{IdentityRepository: fx.repos.Identities, staleRead: true}
	resolver := NewIdentityResolver(ids, fx.repos.Users, fx.accounts, fx.repos.Audit)

	res, err := resolver.Resolve(ctx, testMappingKey, auth.Identity{ExternalID: "ext-1", Username: "loser"})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.UID)
	assert.Equal(t, 2, fx.store.UserCount(), "the losing account is created but never mapped")
	assert.Equal(t, 1, fx.store.MappingCount(testMappingKey))
}

func TestResolveConcurrentFirstLoginsCreateOneAccount(t *testing.T) {
	fx := newResolverFixture()
	id := auth.Identity{ExternalID: "ext-race", Username: "carol", Email: "carol@example.com"}

	const n = 32
	uids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := fx.resolver.Resolve(context.Background(), testMappingKey, id)
			uids[i], errs[i] = res.UID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, uids[0], uids[i])
	}
	assert.Equal(t, 1, fx.store.UserCount())
	assert.Equal(t, 1, fx.store.MappingCount(testMappingKey))
}

func mustParseUID(t *testing.T, raw string) int64 {
	t.Helper()
	uid, ok := entities.ParseUID(raw)
	require.True(t, ok, "expected a uid, got %q", raw)
	return uid
}
