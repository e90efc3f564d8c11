package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/siakad-api/internal/models"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

type mockUserRepo struct {
	users          map[string]*models.User
	findByEmailErr error
	nextID         string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	user.ID = m.nextID
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{nextID: "u-1"}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{Email: " Dosen@Kampus.AC.ID ", FullName: "Dr. Sari", Password: "rahasia123", Role: models.RoleLecturer})
	require.NoError(t, err)
	assert.Equal(t, "dosen@kampus.ac.id", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u-1"].PasswordHash), []byte("rahasia123")))
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u-1": {ID: "u-1", Email: "admin@kampus.ac.id"}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "ADMIN@kampus.ac.id", FullName: "Admin", Password: "rahasia123", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "x@kampus.ac.id", FullName: "X", Password: "rahasia123", Role: "TEACHER"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceGet(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u-1": {ID: "u-1", Email: "a@kampus.ac.id"}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "a@kampus.ac.id", user.Email)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
