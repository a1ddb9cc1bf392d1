package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/infrastructure/memory"
	"github.com/go-healthcare-api/internal/infrastructure/metrics"
	pkgtoken "github.com/go-healthcare-api/internal/pkg/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// mockStore runs fn against itself and then reports the configured commit error.
type mockStore struct{ mock.Mock }

func (m *mockStore) RunInTx(ctx context.Context, fn func(tx domain.CredentialStore) error) error {
	args := m.Called(ctx)
	if err := fn(m); err != nil {
		return err
	}
	return args.Error(0)
}
func (m *mockStore) CreateUser(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}
func (m *mockStore) CreateRole(ctx context.Context, r *domain.Role) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockStore) ListRoles(ctx context.Context) ([]domain.Role, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Role), args.Error(1)
}
func (m *mockStore) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	args := m.Called(ctx, name)
	if r, _ := args.Get(0).(*domain.Role); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	return m.Called(ctx, userID, roleIDs).Error(0)
}
func (m *mockStore) UserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Role), args.Error(1)
}
func (m *mockStore) CreateAccessToken(ctx context.Context, t *domain.AccessToken) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockStore) FindAccessToken(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	args := m.Called(ctx, tokenHash)
	if t, _ := args.Get(0).(*domain.AccessToken); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) TouchAccessToken(ctx context.Context, tokenHash string, at time.Time) error {
	return m.Called(ctx, tokenHash, at).Error(0)
}
func (m *mockStore) CreateVerificationCode(ctx context.Context, v *domain.VerificationCode) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockStore) FindActiveVerificationCode(ctx context.Context, userID string, t domain.VerificationType, now time.Time) (*domain.VerificationCode, error) {
	args := m.Called(ctx, userID, t, now)
	if v, _ := args.Get(0).(*domain.VerificationCode); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockHasher struct{ mock.Mock }

func (m *mockHasher) Hash(plain string) (string, error) {
	args := m.Called(plain)
	return args.String(0), args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, e domain.UserRegistered) error {
	return m.Called(ctx, e).Error(0)
}

// --- helpers ---

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func baseInput() Input {
	return Input{FirstName: "John", LastName: "Doe", Email: "john@gmail.com", Password: "password123"}
}

func patientRole() *domain.Role {
	return &domain.Role{RoleID: "role-patient", Name: domain.RolePatient}
}

func newService(st domain.TxStore, h *mockHasher, d *mockDispatcher, m *metrics.Metrics) Service {
	return NewService(ServiceDeps{
		Store:   st,
		Hasher:  h,
		Events:  d,
		Metrics: m,
		Now:     func() time.Time { return fixedNow },
	})
}

func happyStore(commitErr error) *mockStore {
	st := &mockStore{}
	st.On("RunInTx", mock.Anything).Return(commitErr)
	st.On("CreateUser", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	st.On("FindRoleByName", mock.Anything, domain.RolePatient).Return(patientRole(), nil)
	st.On("SetUserRoles", mock.Anything, mock.AnythingOfType("string"), []string{"role-patient"}).Return(nil)
	st.On("CreateAccessToken", mock.Anything, mock.AnythingOfType("*domain.AccessToken")).Return(nil)
	return st
}

// --- RegisterPatient tests ---

func TestRegisterPatient_Success(t *testing.T) {
	st := happyStore(nil)
	h := &mockHasher{}
	h.On("Hash", "password123").Return("$argon2id$hashed", nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.AnythingOfType("domain.UserRegistered")).Return(nil)
	m := metrics.New(prometheus.NewRegistry())

	reg, err := newService(st, h, d, m).RegisterPatient(context.Background(), baseInput())
	require.NoError(t, err)

	assert.NotEmpty(t, reg.User.UserID)
	assert.Equal(t, "John", reg.User.FirstName)
	assert.Equal(t, "Doe", reg.User.LastName)
	assert.Equal(t, "john@gmail.com", reg.User.Email)
	assert.Equal(t, "$argon2id$hashed", reg.User.PasswordHash)
	assert.Equal(t, domain.UserStatusNotVerified, reg.User.Status)
	assert.Equal(t, fixedNow, reg.User.CreatedAt)
	assert.Len(t, reg.AccessToken, 64)

	// the stored token is the hash of the returned plaintext
	st.AssertCalled(t, "CreateAccessToken", mock.Anything, mock.MatchedBy(func(tok *domain.AccessToken) bool {
		return tok.TokenHash == pkgtoken.Hash(reg.AccessToken) &&
			tok.Name == RegisterTokenName &&
			tok.UserID == reg.User.UserID
	}))
	st.AssertCalled(t, "SetUserRoles", mock.Anything, reg.User.UserID, []string{"role-patient"})

	d.AssertNumberOfCalls(t, "Dispatch", 1)
	d.AssertCalled(t, "Dispatch", mock.Anything, mock.MatchedBy(func(e domain.UserRegistered) bool {
		return e.User.UserID == reg.User.UserID && e.User.Email == "john@gmail.com"
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues(metrics.OutcomeSuccess)))
	h.AssertExpectations(t)
}

func TestRegisterPatient_DuplicateEmailAtCommit(t *testing.T) {
	st := happyStore(domain.ErrDuplicateEmail)
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}

	reg, err := newService(st, h, d, nil).RegisterPatient(context.Background(), baseInput())

	assert.Nil(t, reg)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRegisterPatient_DuplicateEmailOnInsert(t *testing.T) {
	st := &mockStore{}
	st.On("RunInTx", mock.Anything).Return(nil)
	st.On("CreateUser", mock.Anything, mock.Anything).Return(domain.ErrDuplicateEmail)
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}

	_, err := newService(st, h, d, nil).RegisterPatient(context.Background(), baseInput())

	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	st.AssertNotCalled(t, "FindRoleByName", mock.Anything, mock.Anything)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRegisterPatient_RoleNotConfigured(t *testing.T) {
	st := &mockStore{}
	st.On("RunInTx", mock.Anything).Return(nil)
	st.On("CreateUser", mock.Anything, mock.Anything).Return(nil)
	st.On("FindRoleByName", mock.Anything, domain.RolePatient).Return(nil, domain.ErrNotFound)
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}
	m := metrics.New(prometheus.NewRegistry())

	_, err := newService(st, h, d, m).RegisterPatient(context.Background(), baseInput())

	assert.ErrorIs(t, err, domain.ErrRoleNotConfigured)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	st.AssertNotCalled(t, "SetUserRoles", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "CreateAccessToken", mock.Anything, mock.Anything)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues(metrics.OutcomeFailure)))
}

func TestRegisterPatient_TokenWriteFails(t *testing.T) {
	st := &mockStore{}
	st.On("RunInTx", mock.Anything).Return(nil)
	st.On("CreateUser", mock.Anything, mock.Anything).Return(nil)
	st.On("FindRoleByName", mock.Anything, domain.RolePatient).Return(patientRole(), nil)
	st.On("SetUserRoles", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("CreateAccessToken", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}

	_, err := newService(st, h, d, nil).RegisterPatient(context.Background(), baseInput())

	assert.ErrorContains(t, err, "disk full")
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRegisterPatient_HashFails(t *testing.T) {
	st := &mockStore{}
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("", errors.New("out of memory"))
	d := &mockDispatcher{}

	_, err := newService(st, h, d, nil).RegisterPatient(context.Background(), baseInput())

	assert.ErrorContains(t, err, "hash password")
	st.AssertNotCalled(t, "RunInTx", mock.Anything)
}

func TestRegisterPatient_DispatchFailureStillSucceeds(t *testing.T) {
	st := happyStore(nil)
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	m := metrics.New(prometheus.NewRegistry())

	reg, err := newService(st, h, d, m).RegisterPatient(context.Background(), baseInput())

	require.NoError(t, err)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventPublishFailure))
}

// --- atomicity against a real transactional store ---

func TestRegisterPatient_MissingRoleLeavesNoRows(t *testing.T) {
	st := memory.NewStore()
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}

	_, err := newService(st, h, d, nil).RegisterPatient(context.Background(), baseInput())

	assert.ErrorIs(t, err, domain.ErrRoleNotConfigured)
	assert.Equal(t, 0, st.UserCount())
	taken, err := st.EmailExists(context.Background(), "john@gmail.com")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestRegisterPatient_SecondRegistrationRejected(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, st.CreateRole(ctx, patientRole()))
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
	svc := newService(st, h, d, nil)

	first, err := svc.RegisterPatient(ctx, baseInput())
	require.NoError(t, err)
	_, err = svc.RegisterPatient(ctx, baseInput())
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	assert.Equal(t, 1, st.UserCount())
	roles, err := st.UserRoles(ctx, first.User.UserID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, domain.RolePatient, roles[0].Name)
	d.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestRegisterPatient_ConcurrentSameEmailOneWins(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, st.CreateRole(ctx, patientRole()))
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
	svc := newService(st, h, d, nil)

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.RegisterPatient(ctx, baseInput())
		}()
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateEmail):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.Equal(t, 1, st.UserCount())
	d.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestRegisterPatient_TokensDifferPerRegistration(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, st.CreateRole(ctx, patientRole()))
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("hash", nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
	svc := newService(st, h, d, nil)

	first, err := svc.RegisterPatient(ctx, baseInput())
	require.NoError(t, err)
	in := baseInput()
	in.Email = "jane@gmail.com"
	second, err := svc.RegisterPatient(ctx, in)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.User.UserID, second.User.UserID)
}

// --- EmailTaken ---

func TestEmailTaken(t *testing.T) {
	st := &mockStore{}
	st.On("EmailExists", mock.Anything, "john@gmail.com").Return(true, nil)

	taken, err := newService(st, &mockHasher{}, &mockDispatcher{}, nil).EmailTaken(context.Background(), "john@gmail.com")
	require.NoError(t, err)
	assert.True(t, taken)
}
