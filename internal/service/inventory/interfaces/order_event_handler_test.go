package interfaces

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

// 畸形消息没有重试价值：processMessage 返回 nil（确认并丢弃），
// 不会触碰应用服务（appSvc 为 nil，被调用会直接 panic）。
func TestProcessMessage_MalformedPayloadIsDropped(t *testing.T) {
	a := &OrderConsumerAdapter{}

	err := a.processMessage(context.Background(), kafka.Message{Value: []byte("not-json{")})
	assert.NoError(t, err)
}

func TestProcessMessage_MissingRequiredFieldsIsDropped(t *testing.T) {
	a := &OrderConsumerAdapter{}

	cases := []string{
		`{"orderId":42,"orderItems":[{"productId":7,"quantity":2}]}`,                  // 缺 requestId
		`{"requestId":"r1","orderItems":[{"productId":7,"quantity":2}]}`,              // 缺 orderId
		`{"requestId":"r1","orderId":42,"orderItems":[{"productId":7,"quantity":0}]}`, // 数量非正
		`{"requestId":"r1","orderId":42,"orderItems":[{"productId":7}]}`,              // 数量缺失
	}
	for _, body := range cases {
		err := a.processMessage(context.Background(), kafka.Message{Value: []byte(body)})
		assert.NoError(t, err, "payload: %s", body)
	}
}
