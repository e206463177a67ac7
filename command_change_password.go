package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	Login           string `json:"login"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "account.password_change" }

// Validate will run validation rules
func (e ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Login, validation.Required),
		validation.Field(&e.CurrentPassword, validation.Required),
		validation.Field(&e.NewPassword, validation.Required, validation.Length(10, 100)),
	)
}

type ChangePasswordHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
}

func NewChangePasswordHandler(repo RepositoryManager) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:         repo,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password change payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByLoginTx(ctx, tx, event.Login)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrInvalidCredentials
			}
			return err
		}

		if err := ComparePasswordAndHash(event.CurrentPassword, account.PasswordHash); err != nil {
			return ErrInvalidCredentials
		}

		hash, err := HashPassword(event.NewPassword)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Accounts().UpdatePasswordTx(ctx, tx, account.Login, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password change transaction failed")
	}

	h.emitChanged(ctx, event.Login)

	return nil
}

func (h *ChangePasswordHandler) emitChanged(ctx context.Context, login string) {
	event := ActivityEvent{
		EventType:  ActivityEventPasswordChanged,
		Login:      login,
		OccurredAt: time.Now(),
	}
	if err := h.activitySink.Record(ctx, event); err != nil {
		h.logger.Error("failed to record password change event: %s", err)
	}
}
