package models

// EmailSendRequest is the body accepted by the ad-hoc send endpoint
type EmailSendRequest struct {
	ToEmail string `json:"to_email" validate:"required,mailaddr"`
	Subject string `json:"subject" validate:"required,max=998"`
	Body    string `json:"body" validate:"required"`
}

// FailureKind classifies why a send did not succeed
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureConfiguration FailureKind = "configuration"
	FailureAuth          FailureKind = "authentication"
	FailureRecipient     FailureKind = "recipient"
	FailureTransport     FailureKind = "transport"
	FailureTemplate      FailureKind = "template"
	FailureUnexpected    FailureKind = "unexpected"
)

// SendResult is returned by every send operation
type SendResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Kind    FailureKind `json:"-"`
}

// SendSucceeded builds a successful result
func SendSucceeded(message string) SendResult {
	return SendResult{Success: true, Message: message}
}

// SendFailed builds a failed result of the given kind
func SendFailed(kind FailureKind, message string) SendResult {
	return SendResult{Success: false, Message: message, Kind: kind}
}
