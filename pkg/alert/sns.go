package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"
)

// SNSPublisher is the part of the SNS client used by the SNS channel.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes alerts to an AWS SNS topic.
type SNS struct {
	topicARN string
	client   SNSPublisher
}

var (
	_ Channel = &SNS{}
	_ Enabler = &SNS{}
)

// NewSNS loads the default AWS configuration for region. An empty topicARN
// returns a disabled channel without touching AWS.
func NewSNS(ctx context.Context, region, topicARN string) (*SNS, error) {
	if topicARN == "" {
		return &SNS{}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return NewSNSWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSWithClient(client SNSPublisher, topicARN string) *SNS {
	return &SNS{topicARN: topicARN, client: client}
}

func (s *SNS) Name() string { return "sns" }

func (s *SNS) Enabled() bool { return s.topicARN != "" && s.client != nil }

func (s *SNS) Deliver(ctx context.Context, ev Event) error {
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(ev.Title()),
		Message:  aws.String(ev.Message),
	})
	if err != nil {
		return &ChannelError{Channel: s.Name(), Kind: KindDelivery, Err: fmt.Errorf("failed to publish to SNS: %w", err)}
	}

	logrus.WithField("messageID", aws.ToString(out.MessageId)).Debug("sns alert published")
	return nil
}
