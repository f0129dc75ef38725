package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	byEmail map[string]*User
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func newTestService() *Service {
	s := NewService(&mockUserRepo{byEmail: map[string]*User{}})
	s.cost = bcrypt.MinCost
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterRequest{Name: " Ann ", Email: "Ann@Example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.NotEqual(t, "hunter2hunter2", u.PasswordHash)
	assert.False(t, u.IsAdmin)

	got, err := s.Login(ctx, "ANN@example.com ", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Login(ctx, "ann@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "nobody@example.com", "hunter2hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Register(ctx, RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "hunter2hunter2"})
	require.ErrorIs(t, err, ErrEmailTaken)

	byID, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"NoName", RegisterRequest{Email: "a@b.c", Password: "longenough"}},
		{"BadEmail", RegisterRequest{Name: "A", Email: "not-an-email", Password: "longenough"}},
		{"DisplayNameEmail", RegisterRequest{Name: "A", Email: "A <a@b.c>", Password: "longenough"}},
		{"ShortPassword", RegisterRequest{Name: "A", Email: "a@b.c", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestService().Register(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
