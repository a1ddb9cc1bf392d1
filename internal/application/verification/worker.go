package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/infrastructure/metrics"
	"github.com/go-healthcare-api/internal/pkg/id"
)

type codeStore interface {
	CreateVerificationCode(ctx context.Context, v *domain.VerificationCode) error
}

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type Worker struct {
	store    codeStore
	mailer   mailer
	settings Settings
	metrics  *metrics.Metrics
	now      func() time.Time
	rand     io.Reader
}

type WorkerDeps struct {
	Store    codeStore
	Mailer   mailer
	Settings Settings
	Metrics  *metrics.Metrics // optional
	Now      func() time.Time // optional, defaults to time.Now
	Rand     io.Reader        // optional, defaults to crypto/rand
}

func NewWorker(deps WorkerDeps) (*Worker, error) {
	if err := deps.Settings.validate(); err != nil {
		return nil, err
	}
	w := &Worker{
		store:    deps.Store,
		mailer:   deps.Mailer,
		settings: deps.Settings,
		metrics:  deps.Metrics,
		now:      deps.Now,
		rand:     deps.Rand,
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.rand == nil {
		w.rand = rand.Reader
	}
	return w, nil
}

// Handle issues a fresh code, stores it and mails it. Every run adds a new row; the
// newest row is the one that counts. Failures are logged once and returned so the
// queue can retry.
func (w *Worker) Handle(ctx context.Context, job domain.SendVerificationCodeJob) error {
	err := w.send(ctx, job)
	if err != nil {
		slog.Error("failed to send verification code", "user_id", job.UserID, "err", err)
	}
	if w.metrics != nil {
		if err != nil {
			w.metrics.IncVerificationJob(metrics.OutcomeFailure)
		} else {
			w.metrics.IncVerificationJob(metrics.OutcomeSuccess)
		}
	}
	return err
}

func (w *Worker) send(ctx context.Context, job domain.SendVerificationCodeJob) error {
	code, err := w.generateCode()
	if err != nil {
		return err
	}
	now := w.now().UTC()
	if err := w.store.CreateVerificationCode(ctx, &domain.VerificationCode{
		CodeID:    id.New(),
		UserID:    job.UserID,
		Type:      domain.VerificationEmail,
		Code:      code,
		ExpiresAt: now.Add(w.settings.TTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	body, err := renderMail(mailData{Code: code, FirstName: job.FirstName, ExpiryMinutes: w.settings.ExpiryMinutes()})
	if err != nil {
		return err
	}
	return w.mailer.SendEmail(job.Email, mailSubject, body)
}

// generateCode draws uniformly from [MinCode, MaxCode].
func (w *Worker) generateCode() (string, error) {
	span := big.NewInt(w.settings.MaxCode - w.settings.MinCode + 1)
	n, err := rand.Int(w.rand, span)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+w.settings.MinCode, 10), nil
}
