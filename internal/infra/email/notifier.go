package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, correlationID, videoName, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := fmt.Sprintf("VideoXray - Pipeline Run Failed [%s]", correlationID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"A video recognition run has permanently failed after all retry attempts.\r\n\r\n"+
			"Correlation ID: %s\r\n"+
			"Video: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Re-upload the video or inspect the DLQ for the original trigger.\r\n\r\n"+
			"-- VideoXray Pipeline Service",
		correlationID, videoName, errorMsg,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, n.to, subject, body,
	)

	err := smtp.SendMail(addr, nil, n.from, []string{n.to}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("correlation_id", correlationID),
			zap.String("video_name", videoName),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("correlation_id", correlationID),
		zap.String("video_name", videoName),
	)
	return nil
}
