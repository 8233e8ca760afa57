package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message is one rendered outbound email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use by the mailer workers.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig holds configuration for SMTP server
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
	UseTLS    bool
	Timeout   time.Duration
}

// SMTPSender implements Sender over net/smtp
type SMTPSender struct {
	config SMTPConfig
	logger zerolog.Logger
}

// NewSender returns an SMTP sender, or a LogSender when no credentials are
// configured so local runs drain the queue without a mail server.
func NewSender(config SMTPConfig, logger zerolog.Logger) Sender {
	if config.Username == "" || config.Password == "" {
		logger.Warn().Msg("SMTP credentials not configured - emails will only be logged")
		return &LogSender{logger: logger}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &SMTPSender{config: config, logger: logger}
}

// buildMIME assembles a multipart/alternative body with text and HTML parts
func buildMIME(from, boundary string, msg *Message) []byte {
	var b strings.Builder
	headers := [][2]string{
		{"From", from},
		{"To", msg.To},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary)},
	}
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// Send delivers msg, honoring ctx for the dial
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	serverAddress := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	from := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	body := buildMIME(from, "earlyalert-"+strconv.FormatInt(time.Now().UnixNano(), 36), msg)

	dialer := &net.Dialer{Timeout: s.config.Timeout}
	var conn net.Conn
	var err error
	if s.config.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.config.Host}}).DialContext(ctx, "tcp", serverAddress)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", serverAddress)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.config.Timeout))
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if !s.config.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err = client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(body); err != nil {
		return fmt.Errorf("failed to write email message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

// LogSender only logs messages (development)
type LogSender struct {
	logger zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info().
		Str("toEmail", msg.To).
		Str("subject", msg.Subject).
		Msg("Email not sent (SMTP disabled)")
	return nil
}

// Content is the notification data an email is rendered from
type Content struct {
	RecipientName string
	Title         string
	Message       string
	Priority      string
}

// Render produces the subject and both bodies for a notification email
func Render(c Content) (subject, htmlBody, textBody string) {
	subject = c.Title
	if c.Priority == "Urgent" || c.Priority == "High" {
		subject = "[" + c.Priority + "] " + c.Title
	}

	name := c.RecipientName
	if name == "" {
		name = "there"
	}

	htmlBody = fmt.Sprintf(`
		<html>
		<body>
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
				<h2 style="color: #333;">%s</h2>
				<p>Hello %s,</p>
				<p>%s</p>
				<p>You can review this notification in the Early Alert portal.</p>
				<p>Best regards,<br>Student Success Team</p>
			</div>
		</body>
		</html>
	`, html.EscapeString(c.Title), html.EscapeString(name), html.EscapeString(c.Message))

	textBody = fmt.Sprintf("Hello %s,\n\n%s\n\n%s\n\nStudent Success Team\n", name, c.Title, c.Message)
	return subject, htmlBody, textBody
}
