package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/welldanyogia/webrana-mail-digest/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailer"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/report"
	"github.com/welldanyogia/webrana-mail-digest/internal/validator"
	"github.com/welldanyogia/webrana-mail-digest/tests/mocks"
)

// EmailHandlerTestSuite is the test suite for EmailHandler
type EmailHandlerTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	sender  *mocks.MockSender
	handler *EmailHandler
	logBuf  bytes.Buffer
}

func (s *EmailHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.echo.Validator = validator.NewRequestValidator()
	s.sender = new(mocks.MockSender)
	s.logBuf.Reset()
	secLogger := logger.NewSecurityLogger(logger.New(&s.logBuf, "production", "info"))
	s.handler = NewEmailHandler(s.sender, secLogger, logger.Discard())
}

func (s *EmailHandlerTestSuite) TearDownTest() {
	s.sender.AssertExpectations(s.T())
}

func TestEmailHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(EmailHandlerTestSuite))
}

func (s *EmailHandlerTestSuite) post(handler *EmailHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/send-email", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Require().NoError(handler.Send(s.echo.NewContext(req, rec)))
	return rec
}

func (s *EmailHandlerTestSuite) TestSend_Success() {
	vars := map[string]string{"subject": "Hello", "body": "Hi there"}
	s.sender.On("SendTemplated", mock.Anything, "friend@example.com", "Hello", report.MessageTemplate, vars).
		Return(models.SendSucceeded("Email sent successfully to friend@example.com"))

	rec := s.post(s.handler, `{"to_email":"friend@example.com","subject":"Hello","body":"Hi there"}`)

	s.Equal(http.StatusOK, rec.Code)
	var resp response.APIResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Success)
	s.Equal("Email sent successfully to friend@example.com", resp.Message)
}

func (s *EmailHandlerTestSuite) TestSend_InvalidEmailIsRejectedBeforeSending() {
	rec := s.post(s.handler, `{"to_email":"invalid-email","subject":"Hello","body":"Hi"}`)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	var resp response.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.False(resp.Success)
	s.Equal(apperrors.CodeValidationFailed, resp.Code)
	s.Require().NotEmpty(resp.Fields)
	s.Equal("to_email", resp.Fields[0].Field)
	s.sender.AssertNotCalled(s.T(), "SendTemplated", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *EmailHandlerTestSuite) TestSend_QuotedLocalPartIsRejectedBeforeSending() {
	rec := s.post(s.handler, `{"to_email":"\"a\"@example.com","subject":"Hello","body":"Hi"}`)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	var resp response.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(apperrors.CodeValidationFailed, resp.Code)
	s.Require().NotEmpty(resp.Fields)
	s.Equal("to_email", resp.Fields[0].Field)
	s.Equal(validator.MailAddressTag, resp.Fields[0].Rule)
	s.sender.AssertNotCalled(s.T(), "SendTemplated", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *EmailHandlerTestSuite) TestSend_MissingFields() {
	rec := s.post(s.handler, `{"to_email":"friend@example.com"}`)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Contains(rec.Body.String(), `"field":"subject"`)
}

func (s *EmailHandlerTestSuite) TestSend_MalformedBody() {
	rec := s.post(s.handler, `{"to_email":`)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *EmailHandlerTestSuite) TestSend_TransportFailureIsServerError() {
	s.sender.On("SendTemplated", mock.Anything, "friend@example.com", "Hello", report.MessageTemplate, mock.Anything).
		Return(models.SendFailed(models.FailureTransport, "SMTP error occurred: connection refused"))

	rec := s.post(s.handler, `{"to_email":"friend@example.com","subject":"Hello","body":"Hi"}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	var resp response.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("SMTP error occurred: connection refused", resp.Message)
	s.Equal(apperrors.CodeTransportFailed, resp.Code)
}

func (s *EmailHandlerTestSuite) TestSend_UnconfiguredSenderIsServerError() {
	renderer, err := report.NewRenderer()
	s.Require().NoError(err)
	sender := mailer.NewSMTPSender(mailer.Options{
		Host:     "smtp.example.com",
		Port:     587,
		Renderer: renderer,
		Logger:   logger.Discard(),
	})
	handler := NewEmailHandler(sender, nil, logger.Discard())

	rec := s.post(handler, `{"to_email":"friend@example.com","subject":"Hello","body":"Hi"}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	var resp response.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(apperrors.CodeNotConfigured, resp.Code)
	s.Contains(resp.Message, "not configured")
}

func (s *EmailHandlerTestSuite) TestSend_LogsHeaderInjection() {
	s.sender.On("SendTemplated", mock.Anything, "friend@example.com", "Hello\r\nBcc: x@y.com", report.MessageTemplate, mock.Anything).
		Return(models.SendSucceeded("Email sent successfully to friend@example.com"))

	rec := s.post(s.handler, `{"to_email":"friend@example.com","subject":"Hello\r\nBcc: x@y.com","body":"Hi"}`)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(s.logBuf.String(), `"event_type":"header_injection"`)
}
