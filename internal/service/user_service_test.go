package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
)

type userRepoStub struct {
	users map[string]*models.User
}

func (r *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (r *userRepoStub) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, user := range r.users {
		out = append(out, *user)
	}
	return out, nil
}

func TestUserServiceProfileHidesPasswordHash(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "Siti", Email: "siti@example.com", PasswordHash: "hash", Role: models.RoleStudent},
	}}
	svc := NewUserService(repo, nil)

	view, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Siti", view.Name)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
}

func TestUserServiceProfileMissing(t *testing.T) {
	svc := NewUserService(&userRepoStub{users: map[string]*models.User{}}, nil)

	_, err := svc.Profile(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceList(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "Siti", Role: models.RoleStudent},
		"u2": {ID: "u2", Name: "Pak Budi", Role: models.RoleAdmin},
	}}
	svc := NewUserService(repo, nil)

	views, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, views, 2)
}
