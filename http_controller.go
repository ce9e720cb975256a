package accounts

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/nyaruka/phonenumbers"
)

// RegisterAccountRoutes mounts the credential lifecycle endpoints.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...ControllerOption) {
	controller := NewController(opts...)

	app.Post("/auth/register", controller.Register).SetName("auth.register")
	app.Get("/auth/verify-email", controller.VerifyEmail).SetName("auth.verify-email")
	app.Post("/auth/login", controller.Login).SetName("auth.login")
	app.Post("/auth/refresh", controller.Refresh).SetName("auth.refresh")
	app.Post("/auth/logout", controller.Logout, controller.Protected()).SetName("auth.logout")
	app.Post("/auth/resend-verification", controller.ResendVerification).SetName("auth.resend-verification")
	app.Post("/auth/forgot-password", controller.ForgotPassword).SetName("auth.forgot-password")
	app.Post("/auth/reset-password", controller.ResetPassword).SetName("auth.reset-password")

	app.Get("/accounts", controller.ListAccounts, controller.Protected(), controller.RequireRole(RoleAdmin)).
		SetName("accounts.list")
	app.Get("/accounts/:id", controller.GetAccount, controller.Protected()).SetName("accounts.get")
	app.Post("/accounts", controller.CreateAccount, controller.Protected(), controller.RequireRole(RoleAdmin)).
		SetName("accounts.create")
	app.Patch("/accounts/:id", controller.UpdateAccount, controller.Protected()).SetName("accounts.update")
	app.Delete("/accounts/:id", controller.DeleteAccount, controller.Protected(), controller.RequireRole(RoleAdmin)).
		SetName("accounts.delete")
}

// Controller exposes the credential service over HTTP as a JSON API.
type Controller struct {
	Debug        bool
	Logger       Logger
	Service      *Service
	Tokens       TokenService
	ErrorHandler router.ErrorHandler
}

type ControllerOption func(*Controller) *Controller

// WithControllerService sets the credential service.
func WithControllerService(svc *Service) ControllerOption {
	return func(c *Controller) *Controller {
		c.Service = svc
		return c
	}
}

// WithControllerTokens sets the token service used by route guards.
func WithControllerTokens(tokens TokenService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tokens = tokens
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

// WithControllerDebug enables request payload dumps.
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.renderError
	}

	if c.Service == nil {
		panic("Missing Service in accounts controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in accounts controller...")
	}

	return c
}

// RegisterPayload is the registration body.
type RegisterPayload struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Phone     string `form:"phone" json:"phone"`
	Password  string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
	)
}

func (a *Controller) Register(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	result, err := a.Service.Register(ctx.Context(), RegisterMessage{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, result)
}

func (a *Controller) VerifyEmail(ctx router.Context) error {
	token := ctx.Query("token", "")
	userID := ctx.Query("userId", "")

	if token == "" || userID == "" {
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "token and userId are required",
		})
	}

	result, err := a.Service.VerifyEmail(ctx.Context(), userID, token)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

// LoginPayload is the login body.
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) Login(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	pair, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, pair)
}

// RefreshPayload is the token refresh body.
type RefreshPayload struct {
	UserID       string `form:"user_id" json:"user_id"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *Controller) Refresh(ctx router.Context) error {
	payload := new(RefreshPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	result, err := a.Service.Refresh(ctx.Context(), payload.UserID, payload.RefreshToken)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

func (a *Controller) Logout(ctx router.Context) error {
	claims, err := GetRouterClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	result, err := a.Service.Logout(ctx.Context(), claims.AccountID())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

// EmailPayload carries a lone email, shared by the resend and forgot flows.
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *Controller) ResendVerification(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	result, err := a.Service.ResendVerification(ctx.Context(), payload.Email)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

func (a *Controller) ForgotPassword(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	result, err := a.Service.ForgotPassword(ctx.Context(), payload.Email)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

// ResetPasswordPayload is the password reset body.
type ResetPasswordPayload struct {
	UserID      string `form:"user_id" json:"user_id"`
	Token       string `form:"token" json:"token"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 72)),
	)
}

func (a *Controller) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	result, err := a.Service.ResetPassword(ctx.Context(), payload.UserID, payload.Token, payload.NewPassword)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

func (a *Controller) GetAccount(ctx router.Context) error {
	claims, err := GetRouterClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	id := ctx.Param("id", "")
	if id != claims.AccountID() && !claims.HasRole(RoleAdmin) {
		return ctx.JSON(fiber.StatusForbidden, map[string]string{
			"error": "insufficient permissions",
		})
	}

	profile, err := a.Service.GetAccount(ctx.Context(), id)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, profile)
}

func (a *Controller) ListAccounts(ctx router.Context) error {
	page := ctx.QueryInt("page", 1)
	limit := ctx.QueryInt("limit", 10)

	result, err := a.Service.ListAccounts(ctx.Context(), page, limit)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

// CreateAccountPayload is the operator account creation body.
type CreateAccountPayload struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Phone     string `form:"phone" json:"phone"`
	Password  string `form:"password" json:"password"`
	Role      string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r CreateAccountPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&r.Role, validation.In(RoleClient, RoleAdmin)),
	)
}

func (a *Controller) CreateAccount(ctx router.Context) error {
	payload := new(CreateAccountPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	profile, err := a.Service.CreateAccount(ctx.Context(), CreateAccountMessage{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Role:      payload.Role,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, profile)
}

// UpdateAccountPayload is the profile update body.
type UpdateAccountPayload struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Phone     string `form:"phone" json:"phone"`
}

// Validate will run validation rules
func (r UpdateAccountPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
	)
}

func (a *Controller) UpdateAccount(ctx router.Context) error {
	claims, err := GetRouterClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	id := ctx.Param("id", "")
	if id != claims.AccountID() && !claims.HasRole(RoleAdmin) {
		return ctx.JSON(fiber.StatusForbidden, map[string]string{
			"error": "insufficient permissions",
		})
	}

	payload := new(UpdateAccountPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.renderBindError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	profile, err := a.Service.UpdateAccount(ctx.Context(), id, UpdateAccountMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, profile)
}

func (a *Controller) DeleteAccount(ctx router.Context) error {
	result, err := a.Service.DeleteAccount(ctx.Context(), ctx.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

func (a *Controller) renderBindError(ctx router.Context, err error) error {
	a.Logger.Error("payload bind failed: ", "error", err)
	return ctx.JSON(fiber.StatusBadRequest, map[string]string{
		"error": "Error parsing body",
	})
}

func (a *Controller) renderValidationError(ctx router.Context, err error) error {
	a.Logger.Error("payload validation failed: ", "error", err)
	return ctx.JSON(fiber.StatusUnprocessableEntity, map[string]any{
		"error":      "Error validating payload",
		"validation": FormatValidationErrorToMap(err),
	})
}

func (a *Controller) renderError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		a.Logger.Error("unhandled error: ", "error", err)
		return ctx.JSON(fiber.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
	}

	status := statusFromCategory(richErr.Category)
	if richErr.Code > 0 {
		status = richErr.Code
	}
	if status == fiber.StatusInternalServerError {
		a.Logger.Error("internal error: ", "error", richErr)
	}

	body := map[string]any{
		"error": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	return ctx.JSON(status, body)
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors per field.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		out["error"] = err.Error()
		return out
	}

	for field, fieldErr := range fieldErrs {
		out[field] = fieldErr.Error()
	}

	return out
}

// ValidatePhoneNumber accepts E.164-ish numbers parseable by libphonenumber.
// Empty values pass; pair with validation.Required when the field must be set.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return fmt.Errorf("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return fmt.Errorf("must be a valid phone number")
	}

	return nil
}
