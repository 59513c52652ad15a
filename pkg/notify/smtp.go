package notify

import (
	"context"
	"fmt"

	"github.com/paulebil/UniHostel/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type smtpNotifier struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
	logger   logrus.FieldLogger
}

func NewSMTPNotifier(cfg *config.EmailConfig, logger logrus.FieldLogger) Notifier {
	return &smtpNotifier{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

func (n *smtpNotifier) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.from, n.fromName)
	m.SetHeader("To", rendered.To)
	m.SetHeader("Subject", rendered.Subject)
	m.SetBody("text/plain", rendered.Text)
	m.AddAlternative("text/html", rendered.HTML)

	// gomail has no context support; run the dial in the background and stop waiting on cancel
	done := make(chan error, 1)
	go func() { done <- n.dialer.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", rendered.To, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", rendered.To, err)
		}
	}

	n.logger.WithFields(logrus.Fields{
		"to":       rendered.To,
		"template": msg.Template,
	}).Info("Email sent")
	return nil
}

func (n *smtpNotifier) Close() error {
	return nil
}
