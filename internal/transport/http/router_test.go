package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-healthcare-api/internal/application/auth"
	"github.com/go-healthcare-api/internal/application/registration"
	"github.com/go-healthcare-api/internal/application/role"
	"github.com/go-healthcare-api/internal/application/user"
	"github.com/go-healthcare-api/internal/application/verification"
	"github.com/go-healthcare-api/internal/config"
	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/infrastructure/memory"
	"github.com/go-healthcare-api/internal/infrastructure/messaging"
	"github.com/go-healthcare-api/internal/infrastructure/metrics"
	"github.com/go-healthcare-api/internal/pkg/password"
	"github.com/matthewhartstonge/argon2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent chan sentMail
}

func (f *fakeMailer) SendEmail(to, subject, htmlBody string) error {
	f.sent <- sentMail{to: to, subject: subject, body: htmlBody}
	return nil
}

type app struct {
	handler http.Handler
	store   *memory.Store
	mailer  *fakeMailer
}

// newApp wires the full registration flow in-process: memory store, gochannel bus,
// listener and worker, and a mailer that records what it was asked to send.
func newApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore()
	roleSvc := role.NewService(store)
	require.NoError(t, roleSvc.Seed(ctx))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	bus, err := messaging.NewBus(messaging.NewGoChannelTransport(logger), messaging.Config{
		MaxRetries:    1,
		RetryInterval: 10 * time.Millisecond,
	}, logger)
	require.NoError(t, err)

	mailer := &fakeMailer{sent: make(chan sentMail, 4)}
	worker, err := verification.NewWorker(verification.WorkerDeps{
		Store:    store,
		Mailer:   mailer,
		Settings: verification.DefaultSettings(),
		Metrics:  m,
	})
	require.NoError(t, err)
	require.NoError(t, bus.OnUserRegistered("send-verification-code", verification.NewListener(bus).Handle))
	require.NoError(t, bus.OnSendVerificationCode("verification-worker", worker.Handle))

	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = bus.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		_ = bus.Close()
	})
	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not start")
	}

	hcfg := argon2.DefaultConfig()
	hcfg.TimeCost = 1
	hcfg.MemoryCost = 64

	cfg := &config.Config{AllowedOrigins: []string{"*"}, RegisterRatePerMinute: 4}
	h := NewRouter(cfg, &Deps{
		Registration: registration.NewService(registration.ServiceDeps{
			Store:   store,
			Hasher:  password.NewHasherWithConfig(hcfg),
			Events:  bus,
			Metrics: m,
		}),
		Auth:       auth.NewService(store),
		Users:      user.NewService(store),
		Roles:      roleSvc,
		RoleReader: store,
		Gatherer:   reg,
	})
	return &app{handler: h, store: store, mailer: mailer}
}

func (a *app) do(t *testing.T, method, target, ip, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func johnDoe() map[string]string {
	return map[string]string{
		"first_name":            "John",
		"last_name":             "Doe",
		"email":                 "john@gmail.com",
		"password":              "password123",
		"password_confirmation": "password123",
	}
}

type registerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		Status      string `json:"status"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

func TestRegisterPatient_EndToEnd(t *testing.T) {
	a := newApp(t)

	rr := a.do(t, http.MethodPost, "/v1/auth/register/patients", "10.0.0.1", "", johnDoe())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	raw := rr.Body.String()
	assert.NotContains(t, raw, `"password"`)
	assert.NotContains(t, raw, "password123")
	var resp registerResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Success", resp.Status)
	assert.Equal(t, "not_verified", resp.Data.Status)
	require.NotEmpty(t, resp.Data.AccessToken)

	// The verification mail is sent asynchronously by the worker.
	var mail sentMail
	select {
	case mail = <-a.mailer.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("verification mail was not sent")
	}
	assert.Equal(t, "john@gmail.com", mail.to)
	assert.Equal(t, "Email Verification Code", mail.subject)

	codes := a.store.VerificationCodes(resp.Data.ID)
	require.Len(t, codes, 1)
	assert.Equal(t, domain.VerificationEmail, codes[0].Type)
	assert.Len(t, codes[0].Code, 6)
	assert.WithinDuration(t, codes[0].CreatedAt.Add(5*time.Minute), codes[0].ExpiresAt, time.Second)
	assert.Contains(t, mail.body, codes[0].Code)
	assert.Contains(t, mail.body, "John")

	// The issued token authenticates the new patient.
	rr = a.do(t, http.MethodGet, "/v1/user", "", resp.Data.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var profile struct {
		Data struct {
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
	assert.Equal(t, "john@gmail.com", profile.Data.Email)
	assert.Equal(t, []string{"patient"}, profile.Data.Roles)

	// Patients cannot list roles.
	rr = a.do(t, http.MethodGet, "/v1/roles", "", resp.Data.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Registering the same email again fails validation and creates nothing.
	rr = a.do(t, http.MethodPost, "/v1/auth/register/patients", "10.0.0.2", "", johnDoe())
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "The email has already been taken.")
	assert.Equal(t, 1, a.store.UserCount())

	select {
	case extra := <-a.mailer.sent:
		t.Fatalf("unexpected mail to %s", extra.to)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRegisterPatient_EachRegistrationGetsItsOwnToken(t *testing.T) {
	a := newApp(t)
	jane := johnDoe()
	jane["first_name"] = "Jane"
	jane["email"] = "jane@gmail.com"

	tokens := make([]string, 0, 2)
	for i, body := range []map[string]string{johnDoe(), jane} {
		rr := a.do(t, http.MethodPost, "/v1/auth/register/patients", fmt.Sprintf("10.0.1.%d", i+1), "", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var resp registerResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.NotEmpty(t, resp.Data.AccessToken)
		tokens = append(tokens, resp.Data.AccessToken)
	}
	assert.NotEqual(t, tokens[0], tokens[1])
	assert.Equal(t, 2, a.store.UserCount())
}

func TestRegisterPatient_InvalidInputCreatesNothing(t *testing.T) {
	a := newApp(t)
	body := johnDoe()
	body["password_confirmation"] = "different1"

	rr := a.do(t, http.MethodPost, "/v1/auth/register/patients", "10.0.0.3", "", body)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, 0, a.store.UserCount())
}

func TestRegisterPatient_RateLimited(t *testing.T) {
	a := newApp(t)
	body := johnDoe()
	body["first_name"] = "" // fails validation, still counts against the limit

	for i := 0; i < 4; i++ {
		rr := a.do(t, http.MethodPost, "/v1/auth/register/patients", "10.9.9.9", "", body)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	}
	rr := a.do(t, http.MethodPost, "/v1/auth/register/patients", "10.9.9.9", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/user", "", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/user", "", "forged", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/roles", "", "", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	rr := a.do(t, http.MethodGet, "/v1/health-check/ping", "", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, http.MethodPost, "/v1/auth/register/patients", "10.0.0.4", "", johnDoe())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = a.do(t, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `healthcare_patient_registrations_total{outcome="success"} 1`), body)
}
