package sqsmq

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/zlnvch/layerdeck/mq"
)

type SQSMessageQueue struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSMessageQueue(ctx context.Context, devMode bool, sqsEndpoint string, queueName string) (*SQSMessageQueue, error) {
	client, err := newSQSClient(ctx, devMode, sqsEndpoint)
	if err != nil {
		return nil, err
	}

	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
	if err != nil {
		return nil, fmt.Errorf("given queue name '%s' not found in SQS: %w", queueName, err)
	}

	return &SQSMessageQueue{client: client, queueURL: aws.ToString(out.QueueUrl)}, nil
}

func (sqsmq *SQSMessageQueue) Send(ctx context.Context, body string) error {
	return sendMessage(ctx, sqsmq, body)
}

func (sqsmq *SQSMessageQueue) Receive(ctx context.Context, visibilityTimeout int32) (*mq.Message, error) {
	return receiveMessage(ctx, sqsmq, visibilityTimeout)
}

func (sqsmq *SQSMessageQueue) Delete(ctx context.Context, msg *mq.Message) error {
	return deleteMessage(ctx, sqsmq, msg)
}
