package user

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/pulsesocial/pulse-server/config"
)

// Mailer sends account email through the configured SMTP relay. It runs on
// the task queue, never on the request path.
type Mailer struct {
	cfg *config.Config
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendResetCode mails a password reset code.
func (m *Mailer) SendResetCode(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.SMTPUser)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your password reset code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your password reset code is %s. It expires in %s.", code, resetTokenTTL))

	d := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUser, m.cfg.SMTPPass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending reset email to %s: %w", to, err)
	}
	return nil
}
