package mailer

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
)

// Sender delivers the transactional mails the platform produces.
type Sender interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendVerification(ctx context.Context, to, name, token string) error
	SendNewDeviceAlert(ctx context.Context, to, name, ip, device string) error
	SendForgotPassword(ctx context.Context, to, name, token string) error
	SendPasswordChanged(ctx context.Context, to, name string) error
	SendAccountVerified(ctx context.Context, to, name string) error
}

// SMTPSender sends mail over SMTP via go-mail.
type SMTPSender struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewSMTPSender builds sender.
func NewSMTPSender(cfg config.MailConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	s.logger.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (s *SMTPSender) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nWelcome aboard. Your support account is ready, sign in to open your first ticket.\n", name)
	return s.send(ctx, to, "Welcome to the support center", body)
}

func (s *SMTPSender) SendVerification(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/auth/verify?token=%s", s.cfg.BaseURL, token)
	body := fmt.Sprintf("Hello %s,\n\nPlease verify your email address by opening the link below. The link expires in 24 hours.\n\n%s\n", name, link)
	return s.send(ctx, to, "Verify your email address", body)
}

func (s *SMTPSender) SendNewDeviceAlert(ctx context.Context, to, name, ip, device string) error {
	body := fmt.Sprintf("Hello %s,\n\nA sign-in from a new device was detected.\n\nIP: %s\nDevice: %s\n\nIf this was not you, reset your password immediately.\n", name, ip, device)
	return s.send(ctx, to, "New device sign-in detected", body)
}

func (s *SMTPSender) SendForgotPassword(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", s.cfg.BaseURL, token)
	body := fmt.Sprintf("Hello %s,\n\nA password reset was requested for your account. The link below expires in 1 hour.\n\n%s\n\nIf you did not request this, ignore this message.\n", name, link)
	return s.send(ctx, to, "Reset your password", body)
}

func (s *SMTPSender) SendPasswordChanged(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour password was changed and all active sessions were signed out. If this was not you, contact support immediately.\n", name)
	return s.send(ctx, to, "Your password was changed", body)
}

func (s *SMTPSender) SendAccountVerified(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour email address has been verified. You now have full access to the support center.\n", name)
	return s.send(ctx, to, "Account verified", body)
}
