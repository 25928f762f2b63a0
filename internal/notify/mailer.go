package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/google/uuid"
)

const charset = "UTF-8"

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a log-only mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) (string, error) {
	id := uuid.New().String()
	m.logger.Info("email",
		"message_id", id,
		"to", msg.To,
		"from", addressWithName(msg.FromName, msg.FromAddress),
		"subject", msg.Subject,
	)
	return id, nil
}

// SESMailer sends messages with Amazon SES.
type SESMailer struct {
	client sesiface.SESAPI
}

// NewSESMailer creates an SES mailer from an AWS session.
func NewSESMailer(sess *session.Session) *SESMailer {
	return &SESMailer{client: ses.New(sess)}
}

// NewSESMailerWithClient creates an SES mailer over an existing client.
func NewSESMailerWithClient(client sesiface.SESAPI) *SESMailer {
	return &SESMailer{client: client}
}

// Send delivers a plain-text email.
func (m *SESMailer) Send(ctx context.Context, msg Message) (string, error) {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	out, err := m.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Destination: &ses.Destination{ToAddresses: aws.StringSlice([]string{msg.To})},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String(charset), Data: aws.String(msg.Subject)},
			Body: &ses.Body{
				Text: &ses.Content{Charset: aws.String(charset), Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(addressWithName(msg.FromName, msg.FromAddress)),
	})
	if err != nil {
		return "", fmt.Errorf("SendEmail failed using SES: %w", err)
	}
	return aws.StringValue(out.MessageId), nil
}

func addressWithName(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}
