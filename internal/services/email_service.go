package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender defines the interface for outbound security emails
type EmailSender interface {
	SendTwoFactorCode(ctx context.Context, email, code string, ttl time.Duration) error
	SendPasswordReset(ctx context.Context, email, token string, ttl time.Duration) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient    *ses.Client
	fromAddress  string
	resetURLBase string
	logger       *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, resetURLBase string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:    ses.NewFromConfig(cfg),
		fromAddress:  fromAddress,
		resetURLBase: resetURLBase,
		logger:       logger,
	}, nil
}

// SendTwoFactorCode delivers a login challenge code
func (s *AWSSESEmailService) SendTwoFactorCode(ctx context.Context, email, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Your verification code</h1>
        <p>Use this code to finish signing in:</p>
        <p style="font-size: 32px; font-weight: bold; letter-spacing: 6px;">%s</p>
        <p>The code expires in %d minutes.</p>
        <p><strong>Didn't try to sign in?</strong><br>
        Someone may have your password. Change it as soon as possible.</p>
        <p style="color: #666; font-size: 12px; margin-top: 20px;">
        This is an automated message. Please do not reply to this email.</p>
    </div>
</body>
</html>
`, code, minutes)

	textBody := fmt.Sprintf(`Your verification code

Use this code to finish signing in: %s

The code expires in %d minutes.

Didn't try to sign in? Someone may have your password. Change it as soon as possible.

This is an automated message. Please do not reply to this email.
`, code, minutes)

	return s.send(ctx, email, "Your verification code", htmlBody, textBody)
}

// SendPasswordReset delivers a password reset link
func (s *AWSSESEmailService) SendPasswordReset(ctx context.Context, email, token string, ttl time.Duration) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.resetURLBase, token)
	minutes := int(ttl.Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Reset your password</h1>
        <p>We received a request to reset your password. Click the link below to choose a new one:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Reset Password</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>The link expires in %d minutes.</p>
        <p><strong>Didn't request this?</strong><br>
        You can ignore this email. Your password will not be changed.</p>
        <p style="color: #666; font-size: 12px; margin-top: 20px;">
        This is an automated message. Please do not reply to this email.</p>
    </div>
</body>
</html>
`, resetLink, resetLink, minutes)

	textBody := fmt.Sprintf(`Reset your password

We received a request to reset your password. Open the link below to choose a new one:

%s

The link expires in %d minutes.

Didn't request this? You can ignore this email. Your password will not be changed.

This is an automated message. Please do not reply to this email.
`, resetLink, minutes)

	return s.send(ctx, email, "Reset your password", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	_, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("subject", subject))
	return nil
}

// LogEmailService is the development sender: it writes the message content
// to the process log instead of delivering it.
type LogEmailService struct {
	logger *slog.Logger
}

// NewLogEmailService creates a log-only email service
func NewLogEmailService(logger *slog.Logger) *LogEmailService {
	return &LogEmailService{logger: logger}
}

func (s *LogEmailService) SendTwoFactorCode(ctx context.Context, email, code string, ttl time.Duration) error {
	s.logger.Info("two-factor code (development mode, not sent)",
		slog.String("email", email),
		slog.String("code", code),
		slog.Duration("ttl", ttl))
	return nil
}

func (s *LogEmailService) SendPasswordReset(ctx context.Context, email, token string, ttl time.Duration) error {
	s.logger.Info("password reset token (development mode, not sent)",
		slog.String("email", email),
		slog.String("token", token),
		slog.Duration("ttl", ttl))
	return nil
}
