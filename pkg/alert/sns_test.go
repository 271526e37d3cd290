package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	p.input = in
	if p.err != nil {
		return nil, p.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSDeliver(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSNSWithClient(pub, "arn:aws:sns:us-east-1:123456789012:battery")
	require.True(t, s.Enabled())

	ev := NewEvent(9, "Battery is at %d%%")
	require.NoError(t, s.Deliver(context.Background(), ev))

	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:battery", aws.ToString(pub.input.TopicArn))
	assert.Equal(t, "Low battery (9%)", aws.ToString(pub.input.Subject))
	assert.Equal(t, "Battery is at 9%", aws.ToString(pub.input.Message))
}

func TestSNSDeliverError(t *testing.T) {
	s := NewSNSWithClient(&fakePublisher{err: errors.New("throttled")}, "arn:topic")

	err := s.Deliver(context.Background(), NewEvent(9, "%d"))
	require.Error(t, err)

	var ce *ChannelError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindDelivery, ce.Kind)
}

func TestSNSDisabledWithoutTopic(t *testing.T) {
	s, err := NewSNS(context.Background(), "us-east-1", "")
	require.NoError(t, err)
	assert.False(t, s.Enabled())
}
