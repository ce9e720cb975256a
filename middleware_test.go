package accounts_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProtectedStoresClaimsAndCallsNext(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	account := loginReadyAccount(t, "password12345")
	token, err := accounts.NewTokenService(testConfig(t)).IssueAccess(account)
	require.NoError(t, err)

	ctx := &MockContext{}
	ctx.On("Header", "Authorization").Return("Bearer " + token).Once()

	var stored accounts.AuthClaims
	ctx.On("Locals", accounts.ClaimsContextKey, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(accounts.AuthClaims)
		}).Once()

	nextCalled := false
	handler := controller.Protected()(func(c router.Context) error {
		nextCalled = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.True(t, nextCalled)

	require.NotNil(t, stored)
	assert.Equal(t, account.ID.String(), stored.AccountID())
	assert.Equal(t, accounts.RoleClient, stored.Role())

	ctx.AssertExpectations(t)
}

func TestProtectedRejectsMissingHeader(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	ctx := &MockContext{}
	ctx.On("Header", "Authorization").Return("").Once()

	var body map[string]any
	ctx.On("JSON", fiber.StatusUnauthorized, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Once()

	nextCalled := false
	handler := controller.Protected()(func(c router.Context) error {
		nextCalled = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.False(t, nextCalled)
	assert.Equal(t, accounts.TextCodeBearerMalformed, body["code"])

	ctx.AssertExpectations(t)
}

func TestProtectedRejectsWrongScheme(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	ctx := &MockContext{}
	ctx.On("Header", "Authorization").Return("Basic dXNlcjpwYXNz").Once()
	ctx.On("JSON", fiber.StatusUnauthorized, mock.Anything).Return(nil).Once()

	handler := controller.Protected()(func(c router.Context) error {
		t.Fatal("next should not run")
		return nil
	})

	require.NoError(t, handler(ctx))
	ctx.AssertExpectations(t)
}

func TestProtectedRejectsForeignToken(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	// signed with keys the controller does not trust
	cfg := testConfig(t)
	cfg.AccessSigningKey = "some-other-access-key"
	cfg.RefreshSigningKey = "some-other-refresh-key"

	account := loginReadyAccount(t, "password12345")
	token, err := accounts.NewTokenService(cfg).IssueAccess(account)
	require.NoError(t, err)

	ctx := &MockContext{}
	ctx.On("Header", "Authorization").Return("Bearer " + token).Once()

	var body map[string]any
	ctx.On("JSON", fiber.StatusUnauthorized, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Once()

	handler := controller.Protected()(func(c router.Context) error {
		t.Fatal("next should not run")
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.Equal(t, accounts.TextCodeBearerMalformed, body["code"])

	ctx.AssertExpectations(t)
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	claims := &accounts.JWTClaims{UID: "admin-1", AccountRole: accounts.RoleAdmin}

	ctx := &MockContext{}
	ctx.On("Locals", accounts.ClaimsContextKey).Return(claims)

	nextCalled := false
	handler := controller.RequireRole(accounts.RoleAdmin)(func(c router.Context) error {
		nextCalled = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.True(t, nextCalled)
}

func TestRequireRoleForbidsOtherRoles(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	claims := &accounts.JWTClaims{UID: "client-1", AccountRole: accounts.RoleClient}

	ctx := &MockContext{}
	ctx.On("Locals", accounts.ClaimsContextKey).Return(claims)

	var body map[string]string
	ctx.On("JSON", fiber.StatusForbidden, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Once()

	handler := controller.RequireRole(accounts.RoleAdmin)(func(c router.Context) error {
		t.Fatal("next should not run")
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.Equal(t, "insufficient permissions", body["error"])

	ctx.AssertExpectations(t)
}

func TestRequireRoleWithoutClaimsRendersUnauthorized(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	ctx := &MockContext{}
	ctx.On("Locals", accounts.ClaimsContextKey).Return(nil)
	ctx.On("JSON", fiber.StatusUnauthorized, mock.Anything).Return(nil).Once()

	handler := controller.RequireRole(accounts.RoleAdmin)(func(c router.Context) error {
		t.Fatal("next should not run")
		return nil
	})

	require.NoError(t, handler(ctx))
	ctx.AssertExpectations(t)
}
