package users

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
)

// TokenNotification carries everything a delivery channel needs to get a
// lifecycle token to the account holder.
type TokenNotification struct {
	Account *Account
	Token   string
	Kind    TokenType
	Subject string
	Body    string
}

// Notifier delivers lifecycle token notifications. Implementations own the
// channel (email, SMS, queue); the engine fires them after commit.
type Notifier interface {
	Notify(ctx context.Context, notification TokenNotification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notification TokenNotification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, notification TokenNotification) error {
	if f == nil {
		return nil
	}
	return f(ctx, notification)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, TokenNotification) error { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// MessageRenderer renders notification bodies from django templates. The
// built-in templates ship embedded; the tenant settings row can point at a
// different template name per token kind.
type MessageRenderer struct {
	engine *django.Engine
	logger Logger
}

// NewMessageRenderer loads templates from the given filesystem. Pass nil to
// use the embedded defaults.
func NewMessageRenderer(fs http.FileSystem, logger Logger) (*MessageRenderer, error) {
	if logger == nil {
		logger = defLogger{}
	}
	if fs == nil {
		fs = http.FS(templatesFS)
	}

	engine := django.NewFileSystem(fs, ".django")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load message templates")
	}

	return &MessageRenderer{
		engine: engine,
		logger: logger,
	}, nil
}

// Render produces the message body for the notification, choosing the
// template from the settings row when set.
func (r *MessageRenderer) Render(notification TokenNotification, cfg *Settings) (string, error) {
	name := r.templateName(notification.Kind, cfg)

	binding := map[string]any{
		"account": notification.Account,
		"token":   notification.Token,
		"kind":    notification.Kind,
	}

	var buf bytes.Buffer
	if err := r.engine.Render(&buf, name, binding); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to render message template").
			WithMetadata(map[string]any{"template": name})
	}

	return buf.String(), nil
}

func (r *MessageRenderer) templateName(kind TokenType, cfg *Settings) string {
	switch kind {
	case TokenTypePasswordReset:
		if cfg != nil && cfg.MessageTemplatePasswordReset != "" {
			return cfg.MessageTemplatePasswordReset
		}
		return "data/templates/password_reset"
	default:
		if cfg != nil && cfg.MessageTemplateActivation != "" {
			return cfg.MessageTemplateActivation
		}
		return "data/templates/activation"
	}
}
