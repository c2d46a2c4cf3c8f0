package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
)

type mockConsent struct {
	mock.Mock
}

func (m *mockConsent) AuthCodeURL() (string, string, error) {
	args := m.Called()
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockConsent) Exchange(ctx context.Context, code, state string) error {
	return m.Called(ctx, code, state).Error(0)
}

func (m *mockConsent) HasToken(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func serveAuth(t *testing.T, fn echo.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, fn(e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec)))
	return rec
}

func TestAuthHandler_GmailURL(t *testing.T) {
	consent := new(mockConsent)
	consent.On("AuthCodeURL").Return("https://accounts.google.com/o/oauth2/auth?state=abc", "abc", nil)
	consent.On("HasToken", mock.Anything).Return(false)

	rec := serveAuth(t, NewAuthHandler(consent, logger.Discard()).GmailURL, "/api/auth/gmail")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"auth_url":"https://accounts.google.com/o/oauth2/auth?state=abc"`)
	assert.Contains(t, rec.Body.String(), `"authorized":false`)
	consent.AssertExpectations(t)
}

func TestAuthHandler_GmailURL_Error(t *testing.T) {
	consent := new(mockConsent)
	consent.On("AuthCodeURL").Return("", "", errors.New("no entropy"))

	rec := serveAuth(t, NewAuthHandler(consent, logger.Discard()).GmailURL, "/api/auth/gmail")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthHandler_Callback(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		exchange   error
		expectCall bool
		wantStatus int
	}{
		{"success", "/oauth2/callback?code=c1&state=s1", nil, true, http.StatusOK},
		{"consent denied", "/oauth2/callback?error=access_denied", nil, false, http.StatusBadRequest},
		{"missing code", "/oauth2/callback?state=s1", nil, false, http.StatusBadRequest},
		{"bad state", "/oauth2/callback?code=c1&state=s1", fmt.Errorf("invalid or expired oauth state: %w", apperrors.ErrInvalidInput), true, http.StatusBadRequest},
		{"exchange failed", "/oauth2/callback?code=c1&state=s1", fmt.Errorf("%w: oauth code exchange", apperrors.ErrAuthFailed), true, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consent := new(mockConsent)
			if tt.expectCall {
				consent.On("Exchange", mock.Anything, "c1", "s1").Return(tt.exchange)
			}

			rec := serveAuth(t, NewAuthHandler(consent, logger.Discard()).Callback, tt.target)

			assert.Equal(t, tt.wantStatus, rec.Code)
			consent.AssertExpectations(t)
		})
	}
}
