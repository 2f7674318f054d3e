package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnkday/authcore/pkg/principal"
)

func setupInvalidatorTest(t *testing.T) (*Invalidator, *RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	t.Cleanup(func() { store.Close() })

	resolver := NewResolver(WithCache(store))
	return NewInvalidator(store, store, resolver, nil, nil), store, mr
}

func TestPrincipalChangedRevokes(t *testing.T) {
	inv, store, mr := setupInvalidatorTest(t)
	ctx := context.Background()

	key := PermissionKey("user-1", "team-1", principal.RoleMember)
	require.NoError(t, store.SetPermissions(ctx, key, []principal.Permission{"links:view"}, time.Hour))

	require.NoError(t, inv.PrincipalChanged(ctx, "user-1"))

	assert.False(t, mr.Exists(key), "cached sets must be dropped")
	v, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "version must be bumped")
}

func TestMembershipChangedBumpsVersion(t *testing.T) {
	inv, store, _ := setupInvalidatorTest(t)
	ctx := context.Background()

	require.NoError(t, inv.MembershipChanged(ctx, "user-1"))
	require.NoError(t, inv.MembershipChanged(ctx, "user-1"))

	v, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestCustomRoleChangedRevokesAllHolders(t *testing.T) {
	inv, store, mr := setupInvalidatorTest(t)
	ctx := context.Background()

	k1 := PermissionKey("user-1", "team-1", principal.RoleMember)
	k2 := PermissionKey("user-2", "team-1", principal.RoleMember)
	require.NoError(t, store.SetPermissions(ctx, k1, []principal.Permission{"links:view"}, time.Hour))
	require.NoError(t, store.SetPermissions(ctx, k2, []principal.Permission{"links:view"}, time.Hour))

	require.NoError(t, inv.CustomRoleChanged(ctx, "role-x", []string{"user-1", "user-2"}))

	assert.False(t, mr.Exists(k1))
	assert.False(t, mr.Exists(k2))
	for _, id := range []string{"user-1", "user-2"} {
		v, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v, "principal %s", id)
	}
}

func TestInvalidatorWithoutCollaborators(t *testing.T) {
	inv := NewInvalidator(nil, nil, nil, nil, nil)
	assert.NoError(t, inv.PrincipalChanged(context.Background(), "user-1"))
	assert.NoError(t, inv.CustomRoleChanged(context.Background(), "role-x", []string{"user-1"}))
}

func TestNoopVersionStore(t *testing.T) {
	s := NewNoopVersionStore(nil)
	ctx := context.Background()

	v, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	_, err = s.Increment(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "user-1", 5))
	require.NoError(t, s.IncrementBatch(ctx, []string{"user-1"}))

	// Still 0 after every mutation; no credential is ever revoked early.
	v, err = s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}
