package users

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const (
	headerAuthorization = "Authorization"
	authScheme          = "Bearer"
)

// AccessCookieName returns the per-tenant access token cookie name.
func AccessCookieName(cfg Config) string {
	return "jwt-user_" + cfg.GetTenant() + "-access"
}

// RefreshCookieName returns the per-tenant refresh token cookie name.
func RefreshCookieName(cfg Config) string {
	return "jwt-user_" + cfg.GetTenant() + "-refresh"
}

// RouteAuthenticator bridges the session manager and HTTP transport: it
// moves token pairs in and out of cookies and guards protected routes.
type RouteAuthenticator struct {
	sessions     *SessionManager
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(sessions *SessionManager, cfg Config) (*RouteAuthenticator, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required", errors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		sessions: sessions,
		cfg:      cfg,
		Logger:   defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// SetSessionCookies writes both halves of a token pair as httpOnly cookies.
func (a *RouteAuthenticator) SetSessionCookies(c router.Context, pair *TokenPair) {
	a.setCookie(c, AccessCookieName(a.cfg), pair.AccessToken, pair.AccessExpiresAt)
	a.setCookie(c, RefreshCookieName(a.cfg), pair.RefreshToken, pair.RefreshExpiresAt)
}

// ClearSessionCookies expires both session cookies.
func (a *RouteAuthenticator) ClearSessionCookies(c router.Context) {
	a.cookieDel(c, AccessCookieName(a.cfg))
	a.cookieDel(c, RefreshCookieName(a.cfg))
}

// RefreshTokenFromRequest pulls the refresh token from the cookie, falling
// back to the given body value.
func (a *RouteAuthenticator) RefreshTokenFromRequest(c router.Context, bodyToken string) string {
	if token := c.Cookies(RefreshCookieName(a.cfg)); token != "" {
		return token
	}
	return bodyToken
}

// AccessTokenFromRequest pulls the access token from the Authorization
// header, falling back to the access cookie.
func (a *RouteAuthenticator) AccessTokenFromRequest(c router.Context) string {
	header := c.GetString(headerAuthorization, "")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], authScheme) {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(AccessCookieName(a.cfg))
}

// ProtectedRoute validates the access token and stores the claims under the
// configured context key before calling the wrapped handler.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.ErrorHandler
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token := a.AccessTokenFromRequest(c)
			if token == "" {
				return errorHandler(c, ErrUnauthorized)
			}

			claims, err := a.sessions.Validate(token)
			if err != nil {
				return errorHandler(c, err)
			}

			c.Locals(a.contextKey(), claims)
			c.SetContext(WithClaimsContext(c.Context(), claims))

			return hf(c)
		}
	}
}

// AdminRoute wraps ProtectedRoute and additionally requires the admin role.
func (a *RouteAuthenticator) AdminRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.ErrorHandler
	}

	protected := a.ProtectedRoute(errorHandler)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return protected(func(c router.Context) error {
			claims, ok := GetRouterClaims(c, a.contextKey())
			if !ok || !claims.IsAtLeast(RoleAdmin) {
				return errorHandler(c, ErrUnauthorized)
			}
			return hf(c)
		})
	}
}

// Claims returns the validated claims a ProtectedRoute stored for this
// request.
func (a *RouteAuthenticator) Claims(c router.Context) (AuthClaims, bool) {
	return GetRouterClaims(c, a.contextKey())
}

func (a *RouteAuthenticator) contextKey() string {
	if key := a.cfg.GetContextKey(); key != "" {
		return key
	}
	return "user"
}

func (a *RouteAuthenticator) setCookie(c router.Context, name, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Domain:   a.cfg.GetCookieDomain(),
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Domain:   a.cfg.GetCookieDomain(),
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"HTTP error handler category=%s text_code=%s details=%s",
		richErr.Category,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = statusForCategory(richErr.Category)
	}

	return c.JSON(status, map[string]any{
		"ok":        false,
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return 401
	case errors.CategoryBadInput, errors.CategoryValidation:
		return 400
	case errors.CategoryConflict:
		return 409
	case errors.CategoryNotFound:
		return 404
	case errors.CategoryRateLimit:
		return 429
	default:
		return 500
	}
}
