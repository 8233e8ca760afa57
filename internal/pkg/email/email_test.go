package email

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRender_EscapesAndFlagsPriority(t *testing.T) {
	subject, htmlBody, text := Render(Content{
		RecipientName: "Ana <Diaz>",
		Title:         "High risk alert",
		Message:       "Score 0.82 & rising",
		Priority:      "Urgent",
	})

	assert.Equal(t, "[Urgent] High risk alert", subject)
	assert.Contains(t, htmlBody, "Ana &lt;Diaz&gt;")
	assert.Contains(t, htmlBody, "Score 0.82 &amp; rising")
	assert.Contains(t, text, "Score 0.82 & rising")
}

func TestRender_NormalPriorityKeepsTitle(t *testing.T) {
	subject, _, text := Render(Content{Title: "Meeting scheduled", Priority: "Normal"})
	assert.Equal(t, "Meeting scheduled", subject)
	assert.True(t, strings.HasPrefix(text, "Hello there,"))
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME("Early Alert <noreply@example.edu>", "b1", &Message{
		To: "ana@example.edu", Subject: "Hi", HTML: "<p>x</p>", Text: "x",
	}))
	assert.Contains(t, raw, "To: ana@example.edu\r\n")
	assert.Contains(t, raw, `multipart/alternative; boundary="b1"`)
	assert.Contains(t, raw, "--b1\r\nContent-Type: text/plain")
	assert.True(t, strings.HasSuffix(raw, "--b1--\r\n"))
}

func TestNewSender_FallsBackToLogSender(t *testing.T) {
	s := NewSender(SMTPConfig{Host: "localhost"}, zerolog.Nop())
	_, ok := s.(*LogSender)
	assert.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), &Message{To: "a@b.c"}))
}
