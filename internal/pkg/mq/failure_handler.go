// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"swiftcart/internal/pkg/logger"
)

// 死信消息上附带的诊断头，记录消息的来源和失败原因。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionMessage  = "x-exception-message"
)

const dltSendRetries = 3

// FailureHandler 负责把主流程处理失败的消息转发到死信主题。
// 转发是尽力而为的：有限次重试后放弃并记录日志，绝不阻塞主流程的位点提交。
type FailureHandler struct {
	dltWriter *kafka.Writer
}

func NewFailureHandler(dltWriter *kafka.Writer) *FailureHandler {
	return &FailureHandler{dltWriter: dltWriter}
}

// Handle 将原始消息（同 Key、同 Body）转发到死信主题。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	dltMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}

	var err error
	for attempt := 1; attempt <= dltSendRetries; attempt++ {
		if err = h.dltWriter.WriteMessages(ctx, dltMsg); err == nil {
			logger.Ctx(ctx).Warn().
				Str("key", string(msg.Key)).
				Str("original_topic", msg.Topic).
				Err(cause).
				Msg("Message forwarded to dead letter topic")
			return
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}

	// 死信也发不出去：记录后继续，消息仍会被确认，靠日志告警兜底。
	logger.Ctx(ctx).Error().
		Err(err).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: failed to forward message to dead letter topic, message dropped")
}
