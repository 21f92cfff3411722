package mailer

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/model"
)

func TestBuildMIME_Multipart(t *testing.T) {
	msg := model.NotificationMessage{
		To:      "ada@example.com",
		Subject: "Urgent: Ọ̀rọ̀ application closes in 2 days",
		Text:    "Hello Ada,\n\nplain body",
		HTML:    "<p>Hello Ada,</p>",
	}
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	raw, err := buildMIME("alerts@naijaedu.ng", msg, "<id@test>", at)
	require.NoError(t, err)

	m, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", m.Header.Get("To"))
	assert.Equal(t, "<id@test>", m.Header.Get("Message-ID"))

	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, msg.Subject, subject)

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(m.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p) // quoted-printable is decoded by the reader
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, strings.ReplaceAll(string(b), "\r\n", "\n"))
	}
	require.Len(t, types, 2)
	assert.Contains(t, types[0], "text/plain")
	assert.Contains(t, types[1], "text/html")
	assert.Equal(t, msg.Text, bodies[0])
	assert.Equal(t, msg.HTML, bodies[1])
}

func TestNewSMTPMailer_Validation(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{})
	assert.Error(t, err)

	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err, "no sender address")

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", User: "alerts@naijaedu.ng"})
	require.NoError(t, err)
	assert.Equal(t, "alerts@naijaedu.ng", m.cfg.From)
	assert.Equal(t, "465", m.cfg.Port)
}

func TestLogMailer_ReturnsMessageID(t *testing.T) {
	id, err := NewLogMailer(zap.NewNop()).Send(context.Background(), model.NotificationMessage{To: "a@b.c"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<") && strings.HasSuffix(id, "@localhost>"))
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Send(context.Context, model.NotificationMessage) (string, error) {
	c.n++
	return "id", nil
}

func TestRateLimited_StopsOnCancelledContext(t *testing.T) {
	inner := &countingNotifier{}
	rl := NewRateLimited(inner, 1)

	_, err := rl.Send(context.Background(), model.NotificationMessage{})
	require.NoError(t, err, "first message uses the burst")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rl.Send(ctx, model.NotificationMessage{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.n)
}
