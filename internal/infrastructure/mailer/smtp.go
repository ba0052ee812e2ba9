package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pricealert/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

// DefaultAllowedDomains are the recipient domains accepted for alerts
var DefaultAllowedDomains = []string{"gmail.com", "naver.com"}

type smtpServer struct {
	host string
	port int
}

// Known SMTP submission servers per sender domain
var smtpServers = map[string]smtpServer{
	"gmail.com": {host: "smtp.gmail.com", port: 587},
	"naver.com": {host: "smtp.naver.com", port: 587},
}

var validate = validator.New()

// Config holds the sender account used for outgoing mail
type Config struct {
	Sender   string
	Password string
	// Host and Port override the server derived from the sender domain
	Host    string
	Port    int
	Timeout time.Duration
}

// SMTPMailer sends plain-text UTF-8 mail over STARTTLS
type SMTPMailer struct {
	config Config
	logger *slog.Logger
}

// NewSMTPMailer resolves the SMTP server for the sender and returns a mailer.
// Senders on an unknown domain need an explicit Host.
func NewSMTPMailer(cfg Config, logger *slog.Logger) (*SMTPMailer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !ValidateAddress(cfg.Sender) || cfg.Password == "" {
		return nil, fmt.Errorf("%w: sender address and password are required", domain.ErrInvalidConfiguration)
	}

	if cfg.Host == "" {
		server, ok := smtpServers[addressDomain(cfg.Sender)]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported sender domain %q", domain.ErrInvalidConfiguration, addressDomain(cfg.Sender))
		}
		cfg.Host = server.host
		if cfg.Port == 0 {
			cfg.Port = server.port
		}
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &SMTPMailer{config: cfg, logger: logger}, nil
}

// Send delivers one message. Failures wrap domain.ErrEmailFailed.
func (m *SMTPMailer) Send(ctx context.Context, recipient, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.config.Sender); err != nil {
		return fmt.Errorf("%w: sender: %v", domain.ErrEmailFailed, err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("%w: recipient: %v", domain.ErrEmailFailed, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.config.Host,
		mail.WithPort(m.config.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.config.Sender),
		mail.WithPassword(m.config.Password),
		mail.WithTimeout(m.config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("%w: client: %v", domain.ErrEmailFailed, err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Error("mailer: send failed", "recipient", recipient, "host", m.config.Host, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrEmailFailed, err)
	}

	m.logger.Info("mailer: sent", "recipient", recipient, "subject", subject)
	return nil
}

// ValidateAddress reports whether addr is a syntactically valid email address
func ValidateAddress(addr string) bool {
	return validate.Var(addr, "required,email") == nil
}

// DomainAllowed reports whether addr belongs to one of the allowed domains.
// An empty allow-list accepts every domain.
func DomainAllowed(addr string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	d := addressDomain(addr)
	for _, a := range allowed {
		if strings.EqualFold(d, a) {
			return true
		}
	}
	return false
}

func addressDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
