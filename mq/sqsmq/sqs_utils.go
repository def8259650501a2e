package sqsmq

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/zlnvch/layerdeck/mq"
)

// Long polling wait per Receive call
const waitTimeSeconds = 20

func newSQSClient(ctx context.Context, devMode bool, sqsEndpoint string) (*sqs.Client, error) {
	if !devMode {
		// Production: default chain (task role, AWS endpoints)
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return sqs.NewFromConfig(cfg), nil
	}

	// Local queue emulators accept any static credentials
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		),
	)
	if err != nil {
		return nil, err
	}

	return sqs.New(sqs.Options{
		Credentials:      cfg.Credentials,
		Region:           cfg.Region,
		EndpointResolver: sqs.EndpointResolverFromURL(sqsEndpoint),
	}), nil
}

func sendMessage(ctx context.Context, sqsmq *SQSMessageQueue, body string) error {
	_, err := sqsmq.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(sqsmq.queueURL),
		MessageBody: aws.String(body),
	})
	return err
}

func receiveMessage(ctx context.Context, sqsmq *SQSMessageQueue, visibilityTimeout int32) (*mq.Message, error) {
	resp, err := sqsmq.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(sqsmq.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     waitTimeSeconds,
		VisibilityTimeout:   visibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	msg := resp.Messages[0]
	attempts, _ := strconv.Atoi(msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	return &mq.Message{
		Id:       aws.ToString(msg.ReceiptHandle),
		Body:     aws.ToString(msg.Body),
		Attempts: attempts,
	}, nil
}

func deleteMessage(ctx context.Context, sqsmq *SQSMessageQueue, msg *mq.Message) error {
	_, err := sqsmq.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(sqsmq.queueURL),
		ReceiptHandle: aws.String(msg.Id),
	})
	return err
}
