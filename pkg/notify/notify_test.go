package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/paulebil/UniHostel/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiptReady() Message {
	return Message{
		To:       "amina@students.mak.ac.ug",
		Subject:  "Your receipt\r\nBcc: attacker@example.com",
		Template: TemplateReceiptReady,
		Data: map[string]interface{}{
			"FirstName":     "Amina",
			"Amount":        "UGX 150,000.00",
			"RoomNumber":    "A12",
			"HostelName":    "Olympia <Hostel>",
			"ReceiptNumber": "3f0c",
			"URL":           "https://objects.example.com/receipts/3f0c.html?X-Amz-Signature=abc",
			"ExpiresAt":     "2026-10-20 10:00 UTC",
		},
	}
}

func TestRenderReceiptReady(t *testing.T) {
	rendered, err := Render(receiptReady())
	require.NoError(t, err)

	assert.Equal(t, "Your receipt  Bcc: attacker@example.com", rendered.Subject)
	assert.Contains(t, rendered.Text, "UGX 150,000.00")
	assert.Contains(t, rendered.Text, "Olympia <Hostel>")
	assert.Contains(t, rendered.HTML, "Olympia &lt;Hostel&gt;")
	assert.Contains(t, rendered.HTML, "X-Amz-Signature=abc")
}

func TestRenderErrors(t *testing.T) {
	msg := receiptReady()
	msg.To = " "
	_, err := Render(msg)
	assert.Error(t, err)

	msg = receiptReady()
	msg.Template = "welcome"
	_, err = Render(msg)
	assert.Error(t, err)
}

func TestLogNotifierRecordsMessage(t *testing.T) {
	logger, hook := test.NewNullLogger()

	n := NewLogNotifier(logger)
	require.NoError(t, n.Send(context.Background(), receiptReady()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "amina@students.mak.ac.ug", entry.Data["to"])
	assert.True(t, strings.HasPrefix(entry.Message, "[MOCK EMAIL]"))
}

func TestNewSelectsTransport(t *testing.T) {
	logger, _ := test.NewNullLogger()

	n, err := New(&config.EmailConfig{Enabled: false, Transport: "smtp"}, &config.RabbitMQConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &logNotifier{}, n)

	n, err = New(&config.EmailConfig{Enabled: true, Transport: "smtp", Host: "localhost", Port: 25}, &config.RabbitMQConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &smtpNotifier{}, n)

	_, err = New(&config.EmailConfig{Enabled: true, Transport: "pigeon"}, &config.RabbitMQConfig{}, logger)
	assert.Error(t, err)
}
