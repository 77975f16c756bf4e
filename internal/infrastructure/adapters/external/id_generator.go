package external

import (
	"github.com/google/uuid"

	"go-dm/internal/application/ports"
)

// IDGeneratorAdapter ID生成器适配器
type IDGeneratorAdapter struct{}

// NewIDGeneratorAdapter 创建ID生成器适配器
func NewIDGeneratorAdapter() ports.IDGenerator {
	return &IDGeneratorAdapter{}
}

// GenerateMessageID 生成消息ID，优先使用按时间有序的 UUIDv7
func (g *IDGeneratorAdapter) GenerateMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "msg_" + uuid.NewString()
	}
	return "msg_" + id.String()
}
