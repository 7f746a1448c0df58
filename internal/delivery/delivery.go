package delivery

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"roundup/internal/logger"
)

// Result reports the outcome of one delivery attempt.
type Result struct {
	Success    bool     `json:"success"`
	MessageID  string   `json:"message_id"`
	Recipients []string `json:"recipients"`
}

// sesAPI is the slice of the SES v2 client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetEmailIdentity(ctx context.Context, params *sesv2.GetEmailIdentityInput, optFns ...func(*sesv2.Options)) (*sesv2.GetEmailIdentityOutput, error)
}

// Sender delivers digest emails through Amazon SES.
type Sender struct {
	client      sesAPI
	senderEmail string
}

// NewSender builds a Sender using the default AWS credential chain.
func NewSender(ctx context.Context, senderEmail string) (*Sender, error) {
	if senderEmail == "" {
		return nil, fmt.Errorf("sender email is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Sender{
		client:      sesv2.NewFromConfig(cfg),
		senderEmail: senderEmail,
	}, nil
}

// SendDigest sends one digest email to every recipient in a single SES call.
// In dry-run mode nothing is sent; the composed message is logged instead.
func (s *Sender) SendDigest(ctx context.Context, subject, bodyText, bodyHTML string, recipients []string, dryRun bool) (*Result, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients configured")
	}

	if dryRun {
		logger.Info("Dry run, skipping email delivery",
			"from", s.senderEmail,
			"to", fmt.Sprintf("%v", recipients),
			"subject", subject,
			"text_bytes", len(bodyText),
			"html_bytes", len(bodyHTML))
		return &Result{Success: true, MessageID: "dry-run", Recipients: recipients}, nil
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: &s.senderEmail,
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Text: &types.Content{Data: &bodyText},
					Html: &types.Content{Data: &bodyHTML},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	logger.Info("Digest email sent", "message_id", messageID, "recipients", len(recipients))
	return &Result{Success: true, MessageID: messageID, Recipients: recipients}, nil
}

// VerifySender checks that the configured sender identity is verified
// with SES before a real send is attempted.
func (s *Sender) VerifySender(ctx context.Context) error {
	out, err := s.client.GetEmailIdentity(ctx, &sesv2.GetEmailIdentityInput{
		EmailIdentity: &s.senderEmail,
	})
	if err != nil {
		return fmt.Errorf("failed to look up sender identity %q: %w", s.senderEmail, err)
	}
	if !out.VerifiedForSendingStatus {
		return fmt.Errorf("sender identity %q is not verified for sending", s.senderEmail)
	}
	return nil
}
