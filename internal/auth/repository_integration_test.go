//go:build integration

package auth_test

import (
	"context"
	"testing"
	"time"

	"StudentPortal/internal/auth"
	"StudentPortal/internal/autherr"
	"StudentPortal/internal/testutil/mongotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUserRepository(t *testing.T) {
	db := mongotest.Start(t)
	repo := auth.NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.Create(ctx, &auth.User{
		ID: "s-001", FullName: "Alice", Username: "alice", Email: "alice@x.com", Role: auth.RoleStudent,
		Course: "Data Science", CreatedAt: now, UpdatedAt: now,
	}))
	// Imported records may still carry the old role name.
	_, err := db.Collection("users").InsertOne(ctx, bson.M{
		"id": "s-002", "fullname": "Bob", "username": "bob", "email": "bob@x.com", "password": "plain", "role": "user",
	})
	require.NoError(t, err)

	t.Run("unique username and email", func(t *testing.T) {
		err := repo.Create(ctx, &auth.User{ID: "s-003", Username: "alice", Email: "new@x.com", Role: auth.RoleStudent})
		assert.ErrorIs(t, err, autherr.ErrDuplicateIdentity)
		err = repo.Create(ctx, &auth.User{ID: "s-004", Username: "new", Email: "alice@x.com", Role: auth.RoleStudent})
		assert.ErrorIs(t, err, autherr.ErrDuplicateIdentity)
	})

	t.Run("lookups", func(t *testing.T) {
		u, err := repo.FindByLogin(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, "s-001", u.ID)

		u, err = repo.FindByLogin(ctx, "ALICE@x.com")
		require.NoError(t, err)
		assert.Equal(t, "s-001", u.ID)

		u, err = repo.FindByLogin(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleStudent, u.Role)

		_, err = repo.FindByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, autherr.ErrNotFound)

		_, err = repo.FindConflict(ctx, "alice", "alice@x.com", "s-001")
		assert.ErrorIs(t, err, autherr.ErrNotFound)
	})

	t.Run("list and count include legacy students", func(t *testing.T) {
		all, err := repo.ListByRole(ctx, auth.RoleStudent, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		n, err := repo.CountByRole(ctx, auth.RoleStudent)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("update, set password, delete", func(t *testing.T) {
		course := "Web Development"
		require.NoError(t, repo.Update(ctx, "s-001", auth.UserPatch{Course: &course}, now))
		require.NoError(t, repo.SetPassword(ctx, "bob@x.com", "$2a$04$hash", now))

		u, err := repo.FindByID(ctx, "s-001")
		require.NoError(t, err)
		assert.Equal(t, course, u.Course)

		require.NoError(t, repo.Delete(ctx, "s-001"))
		assert.ErrorIs(t, repo.Delete(ctx, "s-001"), autherr.ErrNotFound)
		assert.ErrorIs(t, repo.Update(ctx, "s-001", auth.UserPatch{}, now), autherr.ErrNotFound)
	})
}
