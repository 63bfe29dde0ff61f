package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	"docvault/internal/identity"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey)
		return c.SendString(rid.(string))
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		// Check if it's readable in handler (from response body)
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})
}

func TestRequestID_ReplacesMalformedAndPropagates(t *testing.T) {
	traceID := trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
	})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if c.Get("X-Traced") != "" {
			c.SetUserContext(trace.ContextWithSpanContext(c.UserContext(), spanCtx))
		}
		return c.Next()
	})
	app.Use(RequestID())
	app.Get("/test", func(c *fiber.Ctx) error {
		assert.Equal(t, RequestIDFromCtx(c), RequestIDFrom(c.UserContext()))
		return c.SendString(RequestIDFromCtx(c))
	})

	tests := []struct {
		name   string
		header string
		traced bool
		check  func(t *testing.T, got string)
	}{
		{
			name:   "header with spaces is replaced",
			header: "not valid",
			check: func(t *testing.T, got string) {
				assert.NotEqual(t, "not valid", got)
				assert.Len(t, got, 36)
			},
		},
		{
			name:   "oversized header is replaced",
			header: strings.Repeat("a", 200),
			check: func(t *testing.T, got string) {
				assert.Len(t, got, 36)
			},
		},
		{
			name:   "trace id used when no header",
			traced: true,
			check: func(t *testing.T, got string) {
				assert.Equal(t, traceID.String(), got)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			if tt.traced {
				req.Header.Set("X-Traced", "1")
			}
			resp, err := app.Test(req)
			assert.NoError(t, err)

			body := new(bytes.Buffer)
			_, _ = body.ReadFrom(resp.Body)
			assert.Equal(t, resp.Header.Get(RequestIDHeader), body.String())
			tt.check(t, body.String())
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	loc := time.UTC

	// Logger usually depends on RequestID for request_id field
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, loc))

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	// Verify log output
	var logData map[string]any
	err := json.Unmarshal(buf.Bytes(), &logData)
	assert.NoError(t, err)

	assert.NotEmpty(t, logData["request_id"])
	assert.Equal(t, "GET", logData["method"])
	assert.Equal(t, "/test", logData["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), logData["status"])
	assert.NotNil(t, logData["latency"])
	assert.NotEmpty(t, logData["ts"])
	assert.Equal(t, "info", logData["level"])
	_, hasIdentity := logData["identity"]
	assert.False(t, hasIdentity)
}

func TestLogger_IdentityAndErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Use(Identity(nil))
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadGateway, "upstream")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	req.Header.Set(IdentityHeader, "a@example.com")
	_, err := app.Test(req)
	assert.NoError(t, err)

	var logData map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, float64(fiber.StatusBadGateway), logData["status"])
	assert.Equal(t, "error", logData["level"])
	assert.Equal(t, "a@example.com", logData["identity"])
}

func TestIdentity(t *testing.T) {
	secret := []byte("s3cret")
	signed, err := identity.NewJWTTokenSource(string(secret), time.Minute).Token(context.Background(), "Owner@Example.com")
	assert.NoError(t, err)

	tests := []struct {
		name       string
		secret     []byte
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid bearer token",
			secret:     secret,
			header:     map[string]string{"Authorization": "Bearer " + signed},
			wantStatus: fiber.StatusOK,
			wantBody:   "owner@example.com",
		},
		{
			name:       "token wins over header",
			secret:     secret,
			header:     map[string]string{"Authorization": "Bearer " + signed, IdentityHeader: "other@example.com"},
			wantStatus: fiber.StatusOK,
			wantBody:   "owner@example.com",
		},
		{
			name:       "invalid token rejected",
			secret:     secret,
			header:     map[string]string{"Authorization": "Bearer garbage", IdentityHeader: "a@example.com"},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "non bearer scheme rejected",
			secret:     secret,
			header:     map[string]string{"Authorization": "Basic Zm9vOmJhcg=="},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "header fallback",
			secret:     secret,
			header:     map[string]string{IdentityHeader: " A@Example.com "},
			wantStatus: fiber.StatusOK,
			wantBody:   "a@example.com",
		},
		{
			name:       "token ignored without secret",
			header:     map[string]string{"Authorization": "Bearer " + signed, IdentityHeader: "dev@example.com"},
			wantStatus: fiber.StatusOK,
			wantBody:   "dev@example.com",
		},
		{
			name:       "no identity",
			secret:     secret,
			wantStatus: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(Identity(tt.secret))
			app.Get("/whoami", func(c *fiber.Ctx) error {
				return c.SendString(IdentityFromCtx(c))
			})

			req := httptest.NewRequest("GET", "/whoami", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == fiber.StatusOK {
				buf := new(bytes.Buffer)
				buf.ReadFrom(resp.Body)
				assert.Equal(t, tt.wantBody, buf.String())
			}
		})
	}
}
