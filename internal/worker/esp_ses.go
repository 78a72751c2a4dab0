package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// SESSender delivers email through AWS SES using the SDK v2.
type SESSender struct {
	region string
	client *sesv2.Client
}

// NewSESSender creates an SES sender. Initializes the AWS SDK client if
// credentials are provided.
func NewSESSender(accessKey, secretKey, region string) *SESSender {
	if region == "" {
		region = "us-east-1"
	}

	sender := &SESSender{region: region}

	if accessKey != "" && secretKey != "" {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
		if err != nil {
			logger.Warn("SES client initialization failed", "error", err.Error())
		} else {
			sender.client = sesv2.NewFromConfig(cfg)
		}
	}

	return sender
}

// Send delivers a single email through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg *EmailMessage) (*SendResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("SES client not initialized - check credentials")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("newsletter_issue_id"), Value: aws.String(msg.IssueID)},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return &SendResult{
			Success:   false,
			Permanent: sesFailureIsPermanent(err),
			Gateway:   "ses",
			Error:     err,
		}, nil
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}

	logger.Debug("SES accepted message", "to", msg.To, "message_id", messageID)

	return &SendResult{
		Success:   true,
		MessageID: messageID,
		Gateway:   "ses",
		SentAt:    time.Now(),
	}, nil
}

// sesFailureIsPermanent classifies SES API errors. Rejected messages and
// malformed requests cannot succeed on retry; throttling, paused sending,
// and transport faults can.
func sesFailureIsPermanent(err error) bool {
	var rejected *types.MessageRejected
	if errors.As(err, &rejected) {
		return true
	}
	var badRequest *types.BadRequestException
	if errors.As(err, &badRequest) {
		return true
	}
	var notVerified *types.MailFromDomainNotVerifiedException
	return errors.As(err, &notVerified)
}
