package channels

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// EmailHandler sends plain-text mail over SMTP with STARTTLS. The channel is
// disabled when credentials are missing.
type EmailHandler struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewEmailHandler(host string, port int, username, password, from string) *EmailHandler {
	if from == "" {
		from = username
	}
	return &EmailHandler{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (h *EmailHandler) Name() string { return "email" }

func (h *EmailHandler) Enabled() bool {
	return h.host != "" && h.username != "" && h.password != ""
}

func (h *EmailHandler) Send(ctx context.Context, destination string, msg Message) error {
	if !h.Enabled() {
		return ErrDisabled
	}

	addr := fmt.Sprintf("%s:%d", h.host, h.port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp server: %w", err)
	}

	c, err := smtp.NewClient(conn, h.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	// The dial honors ctx; bound the rest of the session with the same deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := c.StartTLS(&tls.Config{ServerName: h.host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	auth := smtp.PlainAuth("", h.username, h.password, h.host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := c.Mail(h.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(destination); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMIME(h.from, destination, msg.Subject, msg.Body)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return c.Quit()
}

func buildMIME(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
