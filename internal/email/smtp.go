package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"

	"qwiken-auth/pkg/utils"

	"go.uber.org/zap"
)

const resetSubject = "Your Qwiken password reset code"

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #1F2937;">
    <h2>Password Reset</h2>
    <p>Hi {{.UserName}},</p>
    <p>Use this code to reset your Qwiken password:</p>
    <p style="font-size: 32px; font-weight: bold; letter-spacing: 8px;">{{.Code}}</p>
    <p>The code expires in 10 minutes. If you did not request a reset, ignore this email.</p>
  </body>
</html>`))

type smtpDispatcher struct {
	cfg utils.EmailConfig
	log *zap.Logger
}

func NewSMTPDispatcher(cfg utils.EmailConfig, log *zap.Logger) Dispatcher {
	return &smtpDispatcher{
		cfg: cfg,
		log: log.With(zap.String("component", "smtp_dispatcher")),
	}
}

func (d *smtpDispatcher) SendResetCode(ctx context.Context, to, userName, code string) error {
	var body bytes.Buffer
	err := resetTemplate.Execute(&body, struct {
		UserName string
		Code     string
	}{UserName: userName, Code: code})
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}

	message := buildMessage(d.cfg.From, to, resetSubject, body.String())

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	auth := smtp.PlainAuth("", d.cfg.User, d.cfg.Password, d.cfg.Host)

	client, err := dialSMTP(addr, d.cfg.Host, d.cfg.Port)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(parseAddress(d.cfg.From)); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write([]byte(message)); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	d.log.Info("Reset code email sent", zap.String("to", to))
	return nil
}

// dialSMTP speaks implicit TLS on 465, STARTTLS everywhere else when offered
func dialSMTP(addr, host string, port int) (*smtp.Client, error) {
	if port == 465 {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, host)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return nil, err
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

func buildMessage(from, to, subject, body string) string {
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		body,
	}
	return strings.Join(headers, "\r\n")
}

func parseAddress(from string) string {
	start := strings.Index(from, "<")
	end := strings.Index(from, ">")
	if start >= 0 && end > start {
		return strings.TrimSpace(from[start+1 : end])
	}
	return strings.TrimSpace(from)
}
