package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/ledgereye/internal/executor"
)

type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	From     string
	Password string
}

// EmailNotifier delivers rendered reports as email attachments. It
// implements executor.Notifier.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailNotifier(config EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.From, config.Password),
		from:   config.From,
	}
}

func (n *EmailNotifier) Send(ctx context.Context, recipients, ccRecipients []string, doc *executor.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", recipients...)
	if len(ccRecipients) > 0 {
		m.SetHeader("Cc", ccRecipients...)
	}
	m.SetHeader("Subject", fmt.Sprintf("LedgerEye Report: %s", doc.Title))
	m.SetBody("text/plain", fmt.Sprintf("Your scheduled %s report is attached.", doc.Title))
	m.Attach(doc.Filename,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(doc.Data))
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {doc.ContentType}}),
	)

	// gomail has no context support; delivery runs in a goroutine so a
	// cancelled or timed-out send does not hold up the executor.
	errChan := make(chan error, 1)
	go func() {
		errChan <- n.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("failed to send report email: %v", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
