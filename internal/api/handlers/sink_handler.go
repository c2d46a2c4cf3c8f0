package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-mail-digest/internal/api/response"
	"github.com/welldanyogia/webrana-mail-digest/internal/smtpsink"
)

// MessageSink exposes mail captured by the development SMTP sink
type MessageSink interface {
	Messages() []smtpsink.Message
	Reset()
}

// SinkHandler lists and clears captured mail
type SinkHandler struct {
	sink MessageSink
}

// NewSinkHandler creates a new SinkHandler
func NewSinkHandler(sink MessageSink) *SinkHandler {
	return &SinkHandler{sink: sink}
}

// List handles GET /api/sink/messages
func (h *SinkHandler) List(c echo.Context) error {
	msgs := h.sink.Messages()
	if msgs == nil {
		msgs = []smtpsink.Message{}
	}
	return response.Paginated(c, msgs, int64(len(msgs)), len(msgs), 0)
}

// Clear handles DELETE /api/sink/messages
func (h *SinkHandler) Clear(c echo.Context) error {
	h.sink.Reset()
	return response.SuccessWithMessage(c, nil, "captured messages cleared")
}
