package mailbox

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses newlines", "Hello\r\n\r\nWorld\tagain", "Hello World again"},
		{"trims", "   padded   ", "padded"},
		{"empty", "", ""},
		{"exactly limit", strings.Repeat("a", MaxSnippetLength), strings.Repeat("a", MaxSnippetLength)},
		{"over limit", strings.Repeat("b", MaxSnippetLength+50), strings.Repeat("b", MaxSnippetLength)},
		{"multibyte", strings.Repeat("é", MaxSnippetLength+1), strings.Repeat("é", MaxSnippetLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Snippet(tt.in))
		})
	}
}

func TestBodyText(t *testing.T) {
	assert.Equal(t, "plain wins", BodyText("plain wins", "<p>html</p>"))
	assert.Contains(t, BodyText("", "<p>Quarterly <b>numbers</b></p>"), "Quarterly")
	assert.NotContains(t, BodyText("", "<p>Quarterly <b>numbers</b></p>"), "<b>")
	assert.Equal(t, "", BodyText(" ", ""))
}

func TestHeaderFallbacks(t *testing.T) {
	assert.Equal(t, models.NoSubject, subjectOrDefault("  "))
	assert.Equal(t, "Invoice", subjectOrDefault("Invoice"))
	assert.Equal(t, models.UnknownSender, senderOrDefault(""))
	assert.Equal(t, "a@example.com", senderOrDefault("a@example.com"))
}

func TestFetchResult(t *testing.T) {
	ok := Succeeded(nil)
	assert.True(t, ok.OK())
	assert.NotNil(t, ok.Messages)
	assert.Empty(t, ok.Messages)

	failed := Failed(errors.New("boom"))
	assert.False(t, failed.OK())
	assert.Nil(t, failed.Messages)
}

func TestParseBodies_Multipart(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: Hi\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain body\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML body</p>\r\n" +
		"--XYZ--\r\n"

	plain, htmlBody := parseBodies([]byte(raw))

	assert.Contains(t, plain, "Plain body")
	assert.Contains(t, htmlBody, "<p>HTML body</p>")
}

func TestParseBodies_Empty(t *testing.T) {
	plain, htmlBody := parseBodies(nil)
	assert.Empty(t, plain)
	assert.Empty(t, htmlBody)
}
