package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/isdelr/accounts-api/internal/cloud"
	"github.com/isdelr/accounts-api/internal/config"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var newSNSClientFromConfig = func(cfg aws.Config, optFns ...func(*sns.Options)) snsAPI {
	return sns.NewFromConfig(cfg, optFns...)
}

type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

func NewSNSPublisher(ctx context.Context, cfg *config.Config) (*SNSPublisher, error) {
	awsCfg, err := cloud.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &SNSPublisher{
		client:   newSNSClientFromConfig(awsCfg),
		topicARN: cfg.SNSTopicARN,
	}, nil
}

func (p *SNSPublisher) PublishVerification(ctx context.Context, msg VerificationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to sns: %w", err)
	}
	return nil
}

func (p *SNSPublisher) Close() error { return nil }
