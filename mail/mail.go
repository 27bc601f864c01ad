// Package mail renders and delivers the weekly refund report.
package mail

import (
	log "github.com/sirupsen/logrus"

	"github.com/refundmyrail/refundmyrail/report"
)

// SMTPConfig represents the delivery settings for the SMTP sender
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// NewSender returns an SMTP sender when credentials are configured and
// a logging mock otherwise, so local development runs without a mail
// account.
func NewSender(c *SMTPConfig) report.Sender {
	if c == nil || c.User == "" {
		log.Warn("mail: no SMTP user configured, reports will be logged instead of sent")
		return &mockSender{}
	}
	return &smtpSender{c: c}
}

type mockSender struct{}

func (m *mockSender) Send(to string, outcomes []report.Outcome) error {
	body, err := Render(outcomes)
	if err != nil {
		return err
	}
	log.Infof("mail: mock report to %s, %d qualifying journeys, £%.2f estimated, %d bytes",
		to, len(outcomes), Total(outcomes), len(body))
	return nil
}
