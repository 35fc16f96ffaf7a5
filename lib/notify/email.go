// Package notify holds delivery backends for tracker notifications
// besides the Telegram bot itself.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// EmailNotifier delivers tracker notifications by mail for deployments
// without a bot token, user ids in the engine are recipient addresses.
type EmailNotifier struct {
	config SmtpConfig
}

func NewEmailNotifier(config SmtpConfig) EmailNotifier {
	return EmailNotifier{config: config}
}

func (n EmailNotifier) Notify(ctx context.Context, userId, text string) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Price Watch <%s>", n.config.EmailAddress)
	mail.To = []string{userId}
	mail.Subject = "Price tracking update"
	mail.Text = []byte(text)

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		return mail.Send(addr, nil)
	}
	return err
}
