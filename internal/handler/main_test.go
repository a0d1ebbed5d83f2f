package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/validation"
)

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	wantCode int
	wantErr  string // substring of the "error" field, when set
}

type identity struct {
	userID    uint64
	role      string
	theaterID uint64
}

var (
	theaterAdmin = identity{userID: 7, role: model.AccountTheaterAdmin, theaterID: 1}
	superAdmin   = identity{userID: 1, role: model.AccountSuperAdmin}
)

// newEcho returns an echo instance wired like the server: validator, error
// handler and an identity injected in place of JWTAuth.
func newEcho(who identity) *echo.Echo {
	e := echo.New()
	e.Validator = validation.EchoValidator{}
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if who.userID != 0 {
				c.Set(middleware.KeyUserID, who.userID)
				c.Set(middleware.KeyRole, who.role)
				c.Set(middleware.KeyTheaterID, who.theaterID)
			}
			return next(c)
		}
	})
	return e
}

func newAuthRequest(method, path string, data ...string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.WriteString(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func serve(e *echo.Echo, method, path string, data ...string) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, data...)
	e.ServeHTTP(rec, req)
	return rec
}

func runHTTPTests(t *testing.T, e *echo.Echo, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				var got struct {
					Error string `json:"error"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Contains(t, got.Error, tt.wantErr)
			}
		})
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }
