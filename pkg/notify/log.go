package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

type logNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier renders messages and logs them instead of sending.
func NewLogNotifier(logger logrus.FieldLogger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"to":       rendered.To,
		"subject":  rendered.Subject,
		"template": msg.Template,
	}).Info("[MOCK EMAIL] " + rendered.Text)
	return nil
}

func (n *logNotifier) Close() error {
	return nil
}
