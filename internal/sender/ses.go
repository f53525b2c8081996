package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
)

// SESSender sends email through AWS SES using the SDK v2.
type SESSender struct {
	region      string
	defaultFrom string
	client      *sesv2.Client
}

// NewSESSender creates an SES sender. defaultFrom is the verified sender
// address used when the profile has no reply address of its own. The
// client stays nil when credentials are missing; Send then fails with a
// clear error instead of panicking at startup.
func NewSESSender(accessKey, secretKey, region, defaultFrom string) *SESSender {
	if region == "" {
		region = "us-east-1"
	}

	s := &SESSender{region: region, defaultFrom: defaultFrom}

	if accessKey != "" && secretKey != "" {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
		if err != nil {
			logger.Warn("ses config load failed", "error", err.Error())
		} else {
			s.client = sesv2.NewFromConfig(cfg)
		}
	}
	return s
}

// Send delivers a single email through SES.
func (s *SESSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("ses client not initialized, check credentials")
	}

	from := msg.FromEmail
	if from == "" {
		from = s.defaultFrom
	}
	if from == "" {
		return nil, fmt.Errorf("no from address configured")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, from)),
		Destination:      &types.Destination{ToAddresses: []string{msg.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("profile_id"), Value: aws.String(msg.ProfileID)},
			{Name: aws.String("log_id"), Value: aws.String(msg.LogID)},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return &SendResult{Success: false, Error: err, Channel: "ses"}, nil
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Debug("ses email sent", "to", logger.RedactEmail(msg.Email), "message_id", messageID)

	return &SendResult{
		Success:   true,
		MessageID: messageID,
		Channel:   "ses",
		SentAt:    time.Now(),
	}, nil
}
