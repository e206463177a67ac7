package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// Validate will run validation rules
func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// InitializePasswordResetResponse is identical for known and unknown emails
// so the operation cannot be used to probe for accounts. The token only shows
// up here for tests; production callers deliver it through the notifier.
type InitializePasswordResetResponse struct {
	ResetToken string
	Success    bool
}

type InitializePasswordResetHandler struct {
	repo         RepositoryManager
	notifier     Notifier
	renderer     *MessageRenderer
	activitySink ActivitySink
	logger       Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:         repo,
		notifier:     noopNotifier{},
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithNotifier(n Notifier) *InitializePasswordResetHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *InitializePasswordResetHandler) WithRenderer(r *MessageRenderer) *InitializePasswordResetHandler {
	h.renderer = r
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{}
	var notification *TokenNotification
	var cfg *Settings

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		cfg, err = h.repo.Settings().GetTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read settings")
		}

		if !cfg.AllowResetPassword {
			return ErrResetDisabled
		}

		account, err := h.repo.Accounts().GetActiveByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if goerrors.IsNotFound(err) {
				// Unknown and inactive emails get the same response as an
				// active one.
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		if err := h.repo.Tokens().DeleteForLoginTx(ctx, tx, account.Login, TokenTypePasswordReset); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear previous reset tokens")
		}

		token := newActivationUUID()
		expireAt := time.Now().Add(cfg.ResetTokenTTL())
		if _, err := h.repo.Tokens().IssueTx(ctx, tx, account.Login, token, TokenTypePasswordReset, expireAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
		}

		resp.ResetToken = token
		notification = &TokenNotification{
			Account: account,
			Token:   token,
			Kind:    TokenTypePasswordReset,
		}

		h.emitEvent(ctx, ActivityEventPasswordResetRequest, account.Login)
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if notification != nil {
		h.dispatch(*notification, cfg)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) emitEvent(ctx context.Context, kind ActivityEventType, login string) {
	event := ActivityEvent{
		EventType:  kind,
		Login:      login,
		OccurredAt: time.Now(),
	}
	if err := h.activitySink.Record(ctx, event); err != nil {
		h.logger.Error("failed to record %s event: %s", kind, err)
	}
}

func (h *InitializePasswordResetHandler) dispatch(notification TokenNotification, cfg *Settings) {
	if h.renderer != nil {
		if body, err := h.renderer.Render(notification, cfg); err == nil {
			notification.Body = body
		} else {
			h.logger.Error("failed to render notification: %s", err)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()
		if err := h.notifier.Notify(ctx, notification); err != nil {
			h.logger.Error("failed to deliver %s notification: %s", notification.Kind, err)
		}
	}()
}
