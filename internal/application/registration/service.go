package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/infrastructure/metrics"
	"github.com/go-healthcare-api/internal/pkg/id"
	pkgtoken "github.com/go-healthcare-api/internal/pkg/token"
)

// RegisterTokenName labels the access token issued at registration.
const RegisterTokenName = "Register Token"

// Input is an already validated and trimmed registration request.
type Input struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Registration is the committed user plus the plaintext access token. The plaintext is
// never stored and is only available here.
type Registration struct {
	User        domain.User
	AccessToken string
}

type Service interface {
	RegisterPatient(ctx context.Context, in Input) (*Registration, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

type passwordHasher interface {
	Hash(plain string) (string, error)
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, e domain.UserRegistered) error
}

type service struct {
	store   domain.TxStore
	hasher  passwordHasher
	events  eventDispatcher
	metrics *metrics.Metrics
	now     func() time.Time
}

type ServiceDeps struct {
	Store   domain.TxStore
	Hasher  passwordHasher
	Events  eventDispatcher
	Metrics *metrics.Metrics // optional
	Now     func() time.Time // optional, defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:   deps.Store,
		hasher:  deps.Hasher,
		events:  deps.Events,
		metrics: deps.Metrics,
		now:     now,
	}
}

func (s *service) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.store.EmailExists(ctx, email)
}

// RegisterPatient creates the user, attaches the patient role and issues an access token
// in one transaction. UserRegistered is dispatched only after commit; a dispatch failure
// is logged and does not undo the registration.
func (s *service) RegisterPatient(ctx context.Context, in Input) (*Registration, error) {
	start := s.now()
	reg, err := s.register(ctx, in)
	if s.metrics != nil {
		s.metrics.ObserveRegistration(start)
		if err != nil {
			s.metrics.IncRegistration(metrics.OutcomeFailure)
		} else {
			s.metrics.IncRegistration(metrics.OutcomeSuccess)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := s.events.Dispatch(ctx, domain.UserRegistered{User: reg.User}); err != nil {
		slog.Error("failed to dispatch user registered event", "user_id", reg.User.UserID, "err", err)
		if s.metrics != nil {
			s.metrics.IncPublishFailure()
		}
	}
	return reg, nil
}

func (s *service) register(ctx context.Context, in Input) (*Registration, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	plain, err := pkgtoken.NewAccessToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := domain.User{
		UserID:       id.New(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Status:       domain.UserStatusNotVerified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.RunInTx(ctx, func(tx domain.CredentialStore) error {
		if err := tx.CreateUser(ctx, &u); err != nil {
			return err
		}
		role, err := tx.FindRoleByName(ctx, domain.RolePatient)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%s: %w", domain.RolePatient, domain.ErrRoleNotConfigured)
		}
		if err != nil {
			return err
		}
		if err := tx.SetUserRoles(ctx, u.UserID, []string{role.RoleID}); err != nil {
			return err
		}
		return tx.CreateAccessToken(ctx, &domain.AccessToken{
			TokenID:   id.New(),
			UserID:    u.UserID,
			Name:      RegisterTokenName,
			TokenHash: pkgtoken.Hash(plain),
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}
	return &Registration{User: u, AccessToken: plain}, nil
}
