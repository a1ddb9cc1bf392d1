package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-healthcare-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthenticator struct{ mock.Mock }

func (m *mockAuthenticator) Authenticate(ctx context.Context, bearer string) (*domain.User, error) {
	args := m.Called(ctx, bearer)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestAuth_MissingHeader(t *testing.T) {
	authn := &mockAuthenticator{}
	rr := httptest.NewRecorder()
	Auth(authn)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	authn.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestAuth_UnknownToken(t *testing.T) {
	authn := &mockAuthenticator{}
	authn.On("Authenticate", mock.Anything, "bad").Return(nil, domain.ErrUnauthorized)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rr := httptest.NewRecorder()
	Auth(authn)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_StoreFailure(t *testing.T) {
	authn := &mockAuthenticator{}
	authn.On("Authenticate", mock.Anything, "tok").Return(nil, errors.New("dynamo down"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	Auth(authn)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestAuth_InjectsUser(t *testing.T) {
	authn := &mockAuthenticator{}
	authn.On("Authenticate", mock.Anything, "tok").Return(&domain.User{UserID: "u1"}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()

	var seen *domain.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	Auth(authn)(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
	authn.AssertExpectations(t)
}
