package serverutils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type turnRequest struct {
	Utterance string `json:"utterance" validate:"required,max=10"`
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/ok", func(ctx *fiber.Ctx) error {
		return ctx.JSON(SuccessResponse("done", fiber.Map{"n": 1}))
	})
	app.Get("/missing", func(ctx *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	})
	app.Get("/invalid", func(ctx *fiber.Ctx) error {
		return ValidateRequest(turnRequest{})
	})
	app.Get("/boom", func(ctx *fiber.Ctx) error {
		return errors.New("db down")
	})
	app.Get("/me", JwtMiddleware, func(ctx *fiber.Ctx) error {
		return ctx.JSON(SuccessResponse("me", ctx.Locals("user_id").(string)))
	})
	return app
}

func decode(t *testing.T, resp *http.Response) BaseResponse[any] {
	t.Helper()
	var body BaseResponse[any]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		code    int
		success bool
		message string
	}{
		{name: "success passes through", path: "/ok", code: 200, success: true, message: "done"},
		{name: "fiber error keeps its status", path: "/missing", code: 404, message: "Session not found"},
		{name: "validation error is a 400", path: "/invalid", code: 400, message: "Validation failed"},
		{name: "anything else is a 500", path: "/boom", code: 500, message: "Internal server error"},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, tt.success, body.Success)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestValidationMessagesNameTheField(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest(http.MethodGet, "/invalid", nil))
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Equal(t, "is required", body.Errors["utterance"])
}

func TestJwtMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := newApp()

	sign := func(secret string, claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "no header", header: "", code: 401},
		{name: "wrong secret", header: "Bearer " + sign("other", jwt.MapClaims{"user_id": "u1"}), code: 401},
		{name: "missing user id", header: "Bearer " + sign("test-secret", jwt.MapClaims{"role": "user"}), code: 401},
		{name: "valid", header: "Bearer " + sign("test-secret", jwt.MapClaims{"user_id": "u1"}), code: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			if tt.code == 200 {
				assert.Equal(t, "u1", decode(t, resp).Data)
			}
		})
	}
}
