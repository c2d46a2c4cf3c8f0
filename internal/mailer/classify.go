package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-smtp"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

type stage int

const (
	stageConfig stage = iota
	stageTemplate
	stageBuild
	stageConnect
	stageAuth
	stageRecipient
	stageSend
)

// stageError records which step of a delivery failed
type stageError struct {
	stage stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

const notConfiguredMessage = "Email sender is not configured: EMAIL_ADDRESS and EMAIL_PASSWORD are required"

func notConfigured() error {
	return &stageError{stage: stageConfig, err: apperrors.ErrNotConfigured}
}

// classify converts a delivery error into the SendResult shown to callers
func classify(err error, to string) models.SendResult {
	if err == nil {
		return models.SendSucceeded(fmt.Sprintf("Email sent successfully to %s", to))
	}

	var se *stageError
	if !errors.As(err, &se) {
		return models.SendFailed(models.FailureUnexpected, fmt.Sprintf("Unexpected error sending email: %v", err))
	}

	var smtpErr *smtp.SMTPError
	isSMTP := errors.As(se.err, &smtpErr)

	switch se.stage {
	case stageConfig:
		return models.SendFailed(models.FailureConfiguration, notConfiguredMessage)
	case stageTemplate:
		return models.SendFailed(models.FailureTemplate, fmt.Sprintf("Template rendering failed: %v", se.err))
	case stageBuild:
		return models.SendFailed(models.FailureUnexpected, fmt.Sprintf("Unexpected error sending email: %v", se.err))
	case stageAuth:
		return authFailed()
	case stageRecipient:
		if errors.Is(se.err, apperrors.ErrRecipientRejected) || (isSMTP && smtpErr.Code >= 500) {
			return models.SendFailed(models.FailureRecipient, fmt.Sprintf("Invalid recipient email address: %s", to))
		}
	}

	if isSMTP && smtpErr.Code == 535 {
		return authFailed()
	}
	if errors.Is(se.err, context.DeadlineExceeded) || errors.Is(se.err, context.Canceled) || se.stage >= stageConnect {
		return models.SendFailed(models.FailureTransport, fmt.Sprintf("SMTP error occurred: %v", se.err))
	}
	return models.SendFailed(models.FailureUnexpected, fmt.Sprintf("Unexpected error sending email: %v", se.err))
}

func authFailed() models.SendResult {
	return models.SendFailed(models.FailureAuth, "SMTP authentication failed. Check email credentials.")
}

// ResultError turns a failed SendResult into an error in the shared taxonomy
func ResultError(result models.SendResult) error {
	if result.Success {
		return nil
	}

	var sentinel error
	code := apperrors.CodeSendFailed
	switch result.Kind {
	case models.FailureConfiguration:
		sentinel, code = apperrors.ErrNotConfigured, apperrors.CodeNotConfigured
	case models.FailureAuth:
		sentinel, code = apperrors.ErrAuthFailed, apperrors.CodeAuthFailed
	case models.FailureRecipient:
		sentinel, code = apperrors.ErrRecipientRejected, apperrors.CodeRecipientRejected
	case models.FailureTransport:
		sentinel, code = apperrors.ErrTransport, apperrors.CodeTransportFailed
	case models.FailureTemplate:
		sentinel, code = apperrors.ErrTemplate, apperrors.CodeTemplateFailed
	default:
		sentinel = apperrors.ErrSendFailed
	}
	return apperrors.NewAppError(fmt.Errorf("%w: %w", apperrors.ErrSendFailed, sentinel), result.Message, code)
}
