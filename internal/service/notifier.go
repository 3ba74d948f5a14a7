package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auth-service/internal/domain"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Delivery is one OTP on its way to the account owner.
type Delivery struct {
	AccountID string
	Email     string
	FullName  string
	Purpose   domain.Purpose
	Code      string
	ExpiresAt time.Time
}

// Notifier delivers OTP codes out of band.
type Notifier interface {
	SendOTP(ctx context.Context, d Delivery) error
}

// LogNotifier writes the code to the log instead of sending it.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOTP(_ context.Context, d Delivery) error {
	n.logger.Info("OTP issued",
		zap.String("account_id", d.AccountID),
		zap.String("email", d.Email),
		zap.String("purpose", string(d.Purpose)),
		zap.String("code", d.Code),
		zap.Time("expires_at", d.ExpiresAt),
	)
	return nil
}

// MailConfig holds SMTP settings for MailNotifier.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MailNotifier sends codes by email over SMTP.
type MailNotifier struct {
	client *mail.Client
	from   string
	now    func() time.Time
}

func NewMailNotifier(cfg MailConfig) (*MailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &MailNotifier{client: client, from: cfg.From, now: time.Now}, nil
}

func (n *MailNotifier) SendOTP(ctx context.Context, d Delivery) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(d.Email); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Your %s code", formatPurpose(d.Purpose)))
	msg.SetBodyString(mail.TypeTextPlain, formatOTPMessage(d, n.now()))

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}

func formatPurpose(p domain.Purpose) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(p), "_", " "))
}

func formatOTPMessage(d Delivery, now time.Time) string {
	greeting := "Hello"
	if d.FullName != "" {
		greeting += " " + d.FullName
	}
	minutes := int(d.ExpiresAt.Sub(now).Round(time.Minute).Minutes())
	return fmt.Sprintf("%s,\n\nYour OTP code for %s is %s. It is valid for %d minutes.\n",
		greeting, formatPurpose(d.Purpose), d.Code, minutes)
}
