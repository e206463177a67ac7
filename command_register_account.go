package users

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	Phone     string `json:"phone_number"`
	Password  string `json:"password"`
	// Role is only honored on elevated registrations; public callers always
	// get the role configured in settings.
	Role       string `json:"role"`
	Elevated   bool
	UseHashid  bool
	OnResponse func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate will run validation rules
func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Login, validation.Required, validation.Length(3, 100)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(10, 100)),
	)
}

type RegisterAccountResponse struct {
	Account *Account
	// ActivationToken is only set when the account needs out-of-band
	// activation. Handing it to the caller is the notifier's job; it is here
	// for tests and non-delivery flows.
	ActivationToken string
	Success         bool
}

type RegisterAccountHandler struct {
	repo         RepositoryManager
	notifier     Notifier
	renderer     *MessageRenderer
	activitySink ActivitySink
	logger       Logger
}

func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:         repo,
		notifier:     noopNotifier{},
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *RegisterAccountHandler) WithNotifier(n Notifier) *RegisterAccountHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *RegisterAccountHandler) WithRenderer(r *MessageRenderer) *RegisterAccountHandler {
	h.renderer = r
	return h
}

func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &RegisterAccountResponse{}
	var notification *TokenNotification
	var cfg *Settings

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		cfg, err = h.repo.Settings().GetTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read settings")
		}

		if !cfg.PublicCreation && !event.Elevated {
			return ErrCreationDisabled
		}

		login := strings.TrimSpace(event.Login)
		email := strings.TrimSpace(event.Email)

		if err := h.resolveCollisions(ctx, tx, login, email); err != nil {
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

		account := &Account{
			Login:        login,
			Email:        email,
			FirstName:    event.FirstName,
			LastName:     event.LastName,
			Phone:        normalizePhone(event.Phone),
			PasswordHash: hash,
			Role:         cfg.CreationRole(),
			Active:       cfg.ActiveOnCreation,
		}

		if event.Elevated {
			if event.Role != "" {
				account.Role = event.Role
			}
			account.Active = true
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(email); err == nil {
				account.ID = id
			}
		}

		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		resp.Account = account.Sanitized()

		if !account.Active {
			token, err := h.issueActivationToken(ctx, tx, account, cfg)
			if err != nil {
				return err
			}
			resp.ActivationToken = token
			notification = &TokenNotification{
				Account: account,
				Token:   token,
				Kind:    TokenTypeActivation,
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	h.emitRegistered(ctx, resp.Account)

	if notification != nil {
		h.dispatch(*notification, cfg)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// resolveCollisions enforces the re-registration rule: a single inactive
// account with the exact same login and email gets replaced, anything else
// is a conflict.
func (h *RegisterAccountHandler) resolveCollisions(ctx context.Context, tx bun.IDB, login, email string) error {
	matches, err := h.repo.Accounts().FindCollisionsTx(ctx, tx, login, email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing accounts")
	}

	if len(matches) == 0 {
		return nil
	}

	if len(matches) == 1 {
		match := matches[0]
		if match.Login == login && match.Email == email && !match.Active {
			// No lifecycle token issued to the replaced account may survive
			// into the new one.
			if err := h.repo.Tokens().DeleteForLoginTx(ctx, tx, login, TokenTypeActivation); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear stale activation tokens")
			}
			if err := h.repo.Tokens().DeleteForLoginTx(ctx, tx, login, TokenTypePasswordReset); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear stale reset tokens")
			}
			if err := h.repo.Accounts().DeleteByLoginTx(ctx, tx, login); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to replace inactive account")
			}
			return nil
		}
	}

	return ErrAlreadyExists
}

func (h *RegisterAccountHandler) issueActivationToken(ctx context.Context, tx bun.IDB, account *Account, cfg *Settings) (string, error) {
	var token string
	var err error

	if cfg.TokenKind() == ActivationTokenCode {
		token, err = GenerateNumericCode(cfg.CodeLength())
	} else {
		token = newActivationUUID()
	}
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate activation token")
	}

	expireAt := time.Now().Add(cfg.ActivationTokenTTL())
	if _, err := h.repo.Tokens().IssueTx(ctx, tx, account.Login, token, TokenTypeActivation, expireAt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store activation token")
	}

	return token, nil
}

func (h *RegisterAccountHandler) emitRegistered(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		Login:     account.Login,
		Metadata: map[string]any{
			"active": account.Active,
			"role":   account.Role,
		},
		OccurredAt: time.Now(),
	}
	if err := h.activitySink.Record(ctx, event); err != nil {
		h.logger.Error("failed to record registration event: %s", err)
	}
}

func (h *RegisterAccountHandler) dispatch(notification TokenNotification, cfg *Settings) {
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
