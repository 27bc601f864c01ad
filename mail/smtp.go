package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/refundmyrail/refundmyrail/report"
)

type smtpSender struct {
	c *SMTPConfig
}

// Send renders the weekly report and delivers it over SMTP.
func (s *smtpSender) Send(to string, outcomes []report.Outcome) error {
	body, err := Render(outcomes)
	if err != nil {
		return errors.Wrap(err, "failed to render report email")
	}

	from := s.c.From
	if from == "" {
		from = s.c.User
	}
	subject := fmt.Sprintf("Weekly Refund Report: £%.2f", Total(outcomes))

	var msg strings.Builder
	msg.WriteString("From: RefundMyRail <" + from + ">\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body)

	addr := fmt.Sprintf("%s:%d", s.c.Host, s.c.Port)
	auth := smtp.PlainAuth("", s.c.User, s.c.Password, s.c.Host)
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg.String())); err != nil {
		return errors.Wrap(err, "failed to send report email")
	}

	log.Infof("mail: report sent to %s", to)
	return nil
}
