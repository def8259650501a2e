package mq_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/layerdeck/mq"
	"github.com/zlnvch/layerdeck/mq/mocks"
)

type payload struct {
	DesignId string `json:"designId"`
}

func TestSendJSONAndDecode(t *testing.T) {
	queue := new(mocks.MockMQ)
	queue.On("Send", context.Background(), `{"designId":"design-1"}`).Return(nil)

	require.NoError(t, mq.SendJSON(context.Background(), queue, payload{DesignId: "design-1"}))
	queue.AssertExpectations(t)

	var got payload
	msg := &mq.Message{Id: "r1", Body: `{"designId":"design-1"}`}
	require.NoError(t, msg.Decode(&got))
	assert.Equal(t, "design-1", got.DesignId)

	assert.Error(t, (&mq.Message{Body: "{"}).Decode(&got))
	assert.Error(t, mq.SendJSON(context.Background(), queue, make(chan int)))
}
