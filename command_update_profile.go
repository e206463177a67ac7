package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage mutates the profile attributes of an account. Login,
// password, role, and the active flag are not reachable from here; they have
// their own operations.
type UpdateProfileMessage struct {
	Login      string       `json:"login"`
	Patch      ProfilePatch `json:"patch"`
	OnResponse func(resp *UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "account.update_profile" }

// Validate will run validation rules
func (e UpdateProfileMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Login, validation.Required),
		validation.Field(&e.Patch, validation.By(func(value any) error {
			patch, ok := value.(ProfilePatch)
			if !ok {
				return nil
			}
			if patch.Email == nil {
				return nil
			}
			return validation.Validate(*patch.Email, validation.Required, is.Email)
		})),
	)
}

type UpdateProfileResponse struct {
	Account *Account
	Success bool
}

type UpdateProfileHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:         repo,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile update payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	patch := event.Patch
	if patch.Phone != nil {
		normalized := normalizePhone(*patch.Phone)
		patch.Phone = &normalized
	}

	resp := &UpdateProfileResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().UpdateProfileTx(ctx, tx, event.Login, patch)
		if err != nil {
			return err
		}
		resp.Account = account
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	h.emitUpdated(ctx, resp.Account)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *UpdateProfileHandler) emitUpdated(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountUpdated,
		Login:      account.Login,
		OccurredAt: time.Now(),
	}
	if err := h.activitySink.Record(ctx, event); err != nil {
		h.logger.Error("failed to record profile update event: %s", err)
	}
}
