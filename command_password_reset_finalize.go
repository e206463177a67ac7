package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token"`
	Password   string `json:"password"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

// Validate will run validation rules
func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Password, validation.Required, validation.Length(10, 100)),
	)
}

type FinalizePasswordResetResponse struct {
	Account *Account
	Success bool
}

type FinalizePasswordResetHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
}

func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:         repo,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &FinalizePasswordResetResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := h.repo.Tokens().ConsumeTx(ctx, tx, event.Token, TokenTypePasswordReset)
		if err != nil {
			return err
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Accounts().UpdatePasswordTx(ctx, tx, token.Login, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}

		// A successful reset invalidates every open session for the account.
		if _, err := h.repo.Sessions().RevokeAllForLoginTx(ctx, tx, token.Login); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke sessions")
		}

		account, err := h.repo.Accounts().GetByLoginTx(ctx, tx, token.Login)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		resp.Account = account
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.emitReset(ctx, resp.Account)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *FinalizePasswordResetHandler) emitReset(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		Login:      account.Login,
		OccurredAt: time.Now(),
	}
	if err := h.activitySink.Record(ctx, event); err != nil {
		h.logger.Error("failed to record reset event: %s", err)
	}
}
