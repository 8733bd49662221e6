// Package sns delivers timeclock alerts through AWS SNS topics: one topic
// fans out to the affected user's subscriptions, the other feeds the
// operations audit channel.
package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/timeclock-api/internal/config"
	"github.com/timeclock-api/internal/notify"
	"github.com/timeclock-api/internal/pkg/id"
)

// Notifier implements notify.Sink over two SNS topics.
type Notifier struct {
	client        *sns.Client
	userTopicARN  string
	auditTopicARN string
}

func NewNotifier(cfg *config.Config) (*Notifier, error) {
	if cfg.SNSUserTopicARN == "" || cfg.SNSAuditTopicARN == "" {
		return nil, fmt.Errorf("sns notifier requires SNS_USER_TOPIC_ARN and SNS_AUDIT_TOPIC_ARN")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}

	return &Notifier{
		client:        sns.NewFromConfig(awsCfg, clientOpts...),
		userTopicARN:  cfg.SNSUserTopicARN,
		auditTopicARN: cfg.SNSAuditTopicARN,
	}, nil
}

// message is the JSON payload published to both topics. EventID is a ULID so
// consumers can deduplicate and order deliveries.
type message struct {
	EventID string         `json:"event_id"`
	User    string         `json:"user,omitempty"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Fields  []notify.Field `json:"fields,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

func (n *Notifier) NotifyUser(ctx context.Context, user, title, body string, fields []notify.Field) error {
	return n.publish(ctx, n.userTopicARN, message{
		EventID: id.New(),
		User:    user,
		Title:   title,
		Body:    body,
		Fields:  fields,
		SentAt:  time.Now().UTC(),
	})
}

func (n *Notifier) NotifyAudit(ctx context.Context, title, body string, fields []notify.Field) error {
	return n.publish(ctx, n.auditTopicARN, message{
		EventID: id.New(),
		Title:   title,
		Body:    body,
		Fields:  fields,
		SentAt:  time.Now().UTC(),
	})
}

func (n *Notifier) publish(ctx context.Context, topicARN string, msg message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	input := &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String(msg.Title),
		Message:  aws.String(string(payload)),
	}
	if msg.User != "" {
		// Lets user-topic subscribers filter on their own identifier.
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"user": {DataType: aws.String("String"), StringValue: aws.String(msg.User)},
		}
	}
	if _, err := n.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("publish to %s: %w", topicARN, err)
	}
	return nil
}
