package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	// Token is the opaque activation token. For code based activation the
	// Login narrows the lookup since short numeric codes are only unique per
	// account.
	Token      string `json:"token"`
	Login      string `json:"login"`
	OnResponse func(resp *ActivateAccountResponse)
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

// Validate will run validation rules
func (e ActivateAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
	)
}

type ActivateAccountResponse struct {
	Account *Account
	Success bool
}

type ActivateAccountHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
}

func NewActivateAccountHandler(repo RepositoryManager) *ActivateAccountHandler {
	return &ActivateAccountHandler{
		repo:         repo,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *ActivateAccountHandler) WithActivitySink(sink ActivitySink) *ActivateAccountHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *ActivateAccountHandler) WithLogger(logger Logger) *ActivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid activation payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &ActivateAccountResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cfg, err := h.repo.Settings().GetTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read settings")
		}

		// The settings row decides which variant is live. Codes are only
		// unique per account, so an unscoped lookup must never consume them.
		var token *LifecycleToken
		if event.Login != "" {
			if cfg.TokenKind() != ActivationTokenCode {
				return ErrTokenExpiredOrConsumed
			}
			token, err = h.repo.Tokens().ConsumeForLoginTx(ctx, tx, event.Login, event.Token, TokenTypeActivation)
		} else {
			if cfg.TokenKind() == ActivationTokenCode {
				return ErrTokenExpiredOrConsumed
			}
			token, err = h.repo.Tokens().ConsumeTx(ctx, tx, event.Token, TokenTypeActivation)
		}
		if err != nil {
			return err
		}

		if err := h.repo.Accounts().ActivateTx(ctx, tx, token.Login); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
		}

		account, err := h.repo.Accounts().GetByLoginTx(ctx, tx, token.Login)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load activated account")
		}

		resp.Account = account
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation transaction failed")
	}

	h.emitActivated(ctx, resp.Account)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ActivateAccountHandler) emitActivated(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountActivated,
		Login:      account.Login,
		OccurredAt: time.Now(),
	}
	if err := h.activitySink.Record(ctx, event); err != nil {
		h.logger.Error("failed to record activation event: %s", err)
	}
}
