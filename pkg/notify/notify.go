package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/paulebil/UniHostel/config"
	"github.com/sirupsen/logrus"
)

// TemplateReceiptReady tells a guest their receipt can be downloaded.
const TemplateReceiptReady = "receipt_ready"

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

// Message is one outgoing email. Data feeds the named template.
type Message struct {
	To       string                 `json:"to"`
	Subject  string                 `json:"subject"`
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
}

// Notifier delivers messages. Callers treat every error as non-fatal.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Rendered is a message with its bodies filled in
type Rendered struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Render fills the text and html variants of the message template
func Render(msg Message) (*Rendered, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("recipient is required")
	}

	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, msg.Template+".txt", msg.Data); err != nil {
		return nil, fmt.Errorf("failed to render %s text: %w", msg.Template, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, msg.Template+".html", msg.Data); err != nil {
		return nil, fmt.Errorf("failed to render %s html: %w", msg.Template, err)
	}

	return &Rendered{
		To:      msg.To,
		Subject: sanitizeHeader(msg.Subject),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(s))
}

// New picks the transport named in cfg.Transport. Disabled email falls back
// to the log notifier so the pipeline still records what it would have sent.
func New(cfg *config.EmailConfig, rabbit *config.RabbitMQConfig, logger logrus.FieldLogger) (Notifier, error) {
	if !cfg.Enabled {
		return NewLogNotifier(logger), nil
	}

	switch cfg.Transport {
	case "smtp":
		return NewSMTPNotifier(cfg, logger), nil
	case "amqp":
		return NewAMQPNotifier(rabbit, logger)
	case "log", "":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Transport)
	}
}
