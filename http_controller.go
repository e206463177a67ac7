package users

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-users/authz"
)

// RegisterRoutes mounts the account and session JSON API on the router.
func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) {
	controller := NewController(opts...)

	app.Post("/auth/login", controller.Login).SetName("auth.login")
	app.Post("/auth/refresh", controller.Refresh).SetName("auth.refresh")
	app.Post("/auth/logout", controller.Logout).SetName("auth.logout")
	app.Post("/auth/register", controller.Register).SetName("auth.register")
	app.Post("/auth/activate", controller.Activate).SetName("auth.activate")
	app.Post("/auth/password-reset", controller.PasswordResetRequest).SetName("auth.pwd-reset.request")
	app.Post("/auth/password-reset/finalize", controller.PasswordResetFinalize).SetName("auth.pwd-reset.finalize")

	protected := controller.HTTP.ProtectedRoute(controller.ErrorHandler)
	app.Get("/auth/me", protected(controller.Me)).SetName("auth.me")
	app.Patch("/auth/me", protected(controller.UpdateMe)).SetName("auth.me.update")
	app.Post("/auth/password", protected(controller.ChangePassword)).SetName("auth.password.change")

	admin := controller.HTTP.AdminRoute(controller.ErrorHandler)
	app.Get("/auth/roles", admin(controller.ListRoles)).SetName("auth.roles.list")
	app.Post("/auth/roles", admin(controller.CreateRole)).SetName("auth.roles.create")
	app.Delete("/auth/roles/:role", admin(controller.DeleteRole)).SetName("auth.roles.delete")
	app.Get("/auth/permissions", admin(controller.ListPermissions)).SetName("auth.permissions.list")
	app.Post("/auth/permissions", admin(controller.SetPermissions)).SetName("auth.permissions.set")
	app.Delete("/auth/permissions", admin(controller.RemovePermissions)).SetName("auth.permissions.remove")
	app.Get("/auth/policies", admin(controller.ListPolicies)).SetName("auth.policies.list")
	app.Post("/auth/policies", admin(controller.AddPolicy)).SetName("auth.policies.add")
	app.Delete("/auth/policies/:policy", admin(controller.RemovePolicy)).SetName("auth.policies.remove")
	app.Get("/auth/settings", admin(controller.GetSettings)).SetName("auth.settings.get")
	app.Put("/auth/settings", admin(controller.UpdateSettings)).SetName("auth.settings.update")
}

// Controller is the JSON transport over the Service.
type Controller struct {
	Logger       Logger
	Service      *Service
	HTTP         *RouteAuthenticator
	ErrorHandler router.ErrorHandler
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in users controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in users controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.HTTP.ErrorHandler
	}

	return c
}

func WithControllerService(svc *Service) ControllerOption {
	return func(c *Controller) *Controller {
		c.Service = svc
		return c
	}
}

func WithControllerHTTP(http *RouteAuthenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.HTTP = http
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Login    string `form:"login" json:"login"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	pair, err := a.Service.AuthenticateUser(ctx.Context(), payload.Login, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.HTTP.SetSessionCookies(ctx, pair)

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":      true,
		"session": pair,
	})
}

// RefreshRequest payload; the token normally travels in the cookie.
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

func (a *Controller) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)
	// Body is optional here, the cookie wins anyway.
	_ = ctx.Bind(payload)

	token := a.HTTP.RefreshTokenFromRequest(ctx, payload.RefreshToken)
	if token == "" {
		return a.ErrorHandler(ctx, ErrSessionRevokedOrExpired)
	}

	pair, err := a.Service.RefreshToken(ctx.Context(), token)
	if err != nil {
		a.HTTP.ClearSessionCookies(ctx)
		return a.ErrorHandler(ctx, err)
	}

	a.HTTP.SetSessionCookies(ctx, pair)

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":      true,
		"session": pair,
	})
}

func (a *Controller) Logout(ctx router.Context) error {
	payload := new(RefreshRequest)
	_ = ctx.Bind(payload)

	token := a.HTTP.RefreshTokenFromRequest(ctx, payload.RefreshToken)
	if token != "" {
		if err := a.Service.LogoutUser(ctx.Context(), token); err != nil {
			return a.ErrorHandler(ctx, err)
		}
	}

	a.HTTP.ClearSessionCookies(ctx)

	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

func (a *Controller) Register(ctx router.Context) error {
	payload := new(RegisterAccountMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	actor, _ := a.HTTP.Claims(ctx)
	resp, err := a.Service.CreateUser(ctx.Context(), actor, *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"ok":      true,
		"account": resp.Account.Sanitized(),
	})
}

// ActivateRequest payload: a bare token, or a login plus numeric code.
type ActivateRequest struct {
	Token string `form:"token" json:"token"`
	Login string `form:"login" json:"login"`
	Code  string `form:"code" json:"code"`
}

func (a *Controller) Activate(ctx router.Context) error {
	payload := new(ActivateRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var account *Account
	var err error
	if payload.Code != "" {
		account, err = a.Service.ActivateUserByCode(ctx.Context(), payload.Login, payload.Code)
	} else {
		account, err = a.Service.ActivateUser(ctx.Context(), payload.Token)
	}
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":      true,
		"account": account.Sanitized(),
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

func (a *Controller) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Service.RequestPasswordReset(ctx.Context(), payload.Email); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	// Identical response whether or not the email exists.
	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

// PasswordResetFinalizePayload carries the reset token and the new password.
type PasswordResetFinalizePayload struct {
	Token    string `form:"token" json:"token"`
	Password string `form:"password" json:"password"`
}

func (a *Controller) PasswordResetFinalize(ctx router.Context) error {
	payload := new(PasswordResetFinalizePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Service.ResetPassword(ctx.Context(), payload.Token, payload.Password); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

func (a *Controller) Me(ctx router.Context) error {
	claims, ok := a.HTTP.Claims(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	account, err := a.Service.GetCurrentUser(ctx.Context(), claims)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":      true,
		"account": account,
	})
}

func (a *Controller) UpdateMe(ctx router.Context) error {
	claims, ok := a.HTTP.Claims(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	patch := new(ProfilePatch)
	if err := ctx.Bind(patch); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Service.UpdateCurrentUser(ctx.Context(), claims, *patch)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":      true,
		"account": account,
	})
}

// ChangePasswordPayload carries the current and replacement passwords.
type ChangePasswordPayload struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

func (a *Controller) ChangePassword(ctx router.Context) error {
	claims, ok := a.HTTP.Claims(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	payload := new(ChangePasswordPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Service.ChangePassword(ctx.Context(), claims, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

func (a *Controller) ListRoles(ctx router.Context) error {
	roles, err := a.Service.ListRoles(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":    true,
		"roles": roles,
	})
}

func (a *Controller) CreateRole(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	role := new(Role)
	if err := ctx.Bind(role); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	created, err := a.Service.CreateRole(ctx.Context(), claims, role)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"ok":   true,
		"role": created,
	})
}

func (a *Controller) DeleteRole(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	if err := a.Service.DeleteRole(ctx.Context(), claims, ctx.Param("role")); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

func (a *Controller) ListPermissions(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	grants, err := a.Service.ListPermissions(ctx.Context(), claims)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":     true,
		"grants": grants,
	})
}

// PermissionsPayload names a role, a table, and the privileges to move.
type PermissionsPayload struct {
	Role       string            `form:"role" json:"role"`
	Table      string            `form:"table" json:"table"`
	Privileges []authz.Privilege `form:"privileges" json:"privileges"`
}

// Validate will run validation rules
func (r PermissionsPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.Length(1, 63)),
		validation.Field(&r.Table, validation.Required, validation.Length(1, 63)),
		validation.Field(&r.Privileges, validation.Required),
	)
}

func (a *Controller) SetPermissions(ctx router.Context) error {
	return a.applyPermissions(ctx, true)
}

func (a *Controller) RemovePermissions(ctx router.Context) error {
	return a.applyPermissions(ctx, false)
}

func (a *Controller) applyPermissions(ctx router.Context, grant bool) error {
	claims, _ := a.HTTP.Claims(ctx)

	payload := new(PermissionsPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var err error
	if grant {
		err = a.Service.SetPermissions(ctx.Context(), claims, payload.Role, payload.Table, payload.Privileges...)
	} else {
		err = a.Service.RemovePermissions(ctx.Context(), claims, payload.Role, payload.Table, payload.Privileges...)
	}
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

func (a *Controller) ListPolicies(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	policies, err := a.Service.ListPolicies(ctx.Context(), claims, ctx.Query("table", ""))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":       true,
		"policies": policies,
	})
}

// PolicyPayload describes a row security policy to create.
type PolicyPayload struct {
	Name      string `form:"name" json:"name"`
	Table     string `form:"table" json:"table"`
	Role      string `form:"role" json:"role"`
	Condition string `form:"condition" json:"condition"`
}

// Validate will run validation rules
func (r PolicyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 63)),
		validation.Field(&r.Table, validation.Required, validation.Length(1, 63)),
		validation.Field(&r.Role, validation.Required, validation.Length(1, 63)),
		validation.Field(&r.Condition, validation.Required),
	)
}

func (a *Controller) AddPolicy(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	payload := new(PolicyPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Service.AddPolicy(ctx.Context(), claims, payload.Name, payload.Table, payload.Role, payload.Condition); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{"ok": true})
}

func (a *Controller) RemovePolicy(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	if err := a.Service.RemovePolicy(ctx.Context(), claims, ctx.Param("policy"), ctx.Query("table", "")); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

func (a *Controller) GetSettings(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	settings, err := a.Service.GetSettings(ctx.Context(), claims)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":       true,
		"settings": settings,
	})
}

func (a *Controller) UpdateSettings(ctx router.Context) error {
	claims, _ := a.HTTP.Claims(ctx)

	settings := new(Settings)
	if err := ctx.Bind(settings); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	updated, err := a.Service.UpdateSettings(ctx.Context(), claims, settings)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":       true,
		"settings": updated,
	})
}
