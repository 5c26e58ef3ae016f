package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/fyrsmithlabs/projectd/internal/awsconf"
)

// SQSAPI is the subset of the SQS client the publisher calls.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSConfig configures the SQS publisher.
type SQSConfig struct {
	QueueURL string
	Region   string
	Endpoint string
}

// SQSPublisher sends envelopes to one SQS queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher wraps an existing client.
func NewSQSPublisher(client SQSAPI, queueURL string) (*SQSPublisher, error) {
	if client == nil {
		return nil, errors.New("sqs client is required")
	}
	if queueURL == "" {
		return nil, errors.New("sqs queue url is required")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}, nil
}

// OpenSQSPublisher builds an SQS client from the default AWS chain.
func OpenSQSPublisher(ctx context.Context, cfg SQSConfig) (*SQSPublisher, error) {
	awsCfg, err := awsconf.Load(ctx, awsconf.Options{Region: cfg.Region})
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg.Endpoint)
	})
	return NewSQSPublisher(client, cfg.QueueURL)
}

// Publish implements Publisher.
func (p *SQSPublisher) Publish(ctx context.Context, msg Message) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(msg.Data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"messageType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Type)),
			},
			"messageId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.ID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

// Close implements Publisher.
func (p *SQSPublisher) Close() error { return nil }
