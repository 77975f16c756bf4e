package entities

import (
	"errors"
	"time"
	"unicode/utf8"

	"go-dm/internal/domain/valueobjects"
)

// WithdrawnContent 撤回后的占位内容
const WithdrawnContent = "[message withdrawn]"

var (
	ErrMessageWithdrawn     = errors.New("消息已撤回")
	ErrWithdrawWindowPassed = errors.New("已超过可撤回时间")
	ErrNotMessageSender     = errors.New("只有发送者可以撤回消息")
	ErrNotMessageMember     = errors.New("不是该消息的参与者")
)

// Message 私信领域实体
// 一次发送尝试对应一条消息；投递状态在创建时确定，之后只能被发送者撤回
type Message struct {
	id              string
	senderID        string
	receiverID      string
	content         string
	mediaRef        string
	kind            valueobjects.MessageKind
	status          valueobjects.DeliveryStatus
	blockReason     valueobjects.BlockReason
	receiverVisible bool
	read            bool
	readAt          *time.Time
	senderDeleted   bool
	receiverDeleted bool
	createdAt       time.Time
}

// NewMessage 创建新消息实体
func NewMessage(
	id, senderID, receiverID string,
	kind valueobjects.MessageKind,
	content, mediaRef string,
	status valueobjects.DeliveryStatus,
	reason valueobjects.BlockReason,
	createdAt time.Time,
) (*Message, error) {
	if id == "" {
		return nil, errors.New("消息ID不能为空")
	}
	if senderID == "" || receiverID == "" {
		return nil, errors.New("发送者和接收者ID不能为空")
	}
	if senderID == receiverID {
		return nil, errors.New("不能给自己发送私信")
	}
	if !kind.IsValid() {
		return nil, errors.New("无效的消息类型")
	}
	if content == "" && mediaRef == "" {
		return nil, errors.New("消息内容不能为空")
	}
	if status == valueobjects.DeliveryStatusWithdrawn || !status.IsValid() {
		return nil, errors.New("无效的初始投递状态")
	}
	if status != valueobjects.DeliveryStatusBlocked {
		reason = valueobjects.BlockReasonNone
	}

	return &Message{
		id:              id,
		senderID:        senderID,
		receiverID:      receiverID,
		content:         content,
		mediaRef:        mediaRef,
		kind:            kind,
		status:          status,
		blockReason:     reason,
		receiverVisible: status.VisibleToReceiver(),
		createdAt:       createdAt,
	}, nil
}

// ID 获取消息ID
func (m *Message) ID() string {
	return m.id
}

// SenderID 获取发送者ID
func (m *Message) SenderID() string {
	return m.senderID
}

// ReceiverID 获取接收者ID
func (m *Message) ReceiverID() string {
	return m.receiverID
}

// Content 获取消息内容
func (m *Message) Content() string {
	return m.content
}

// MediaRef 获取媒体引用（图片消息）
func (m *Message) MediaRef() string {
	return m.mediaRef
}

// Kind 获取消息类型
func (m *Message) Kind() valueobjects.MessageKind {
	return m.kind
}

// Status 获取投递状态
func (m *Message) Status() valueobjects.DeliveryStatus {
	return m.status
}

// BlockReason 获取拦截原因
func (m *Message) BlockReason() valueobjects.BlockReason {
	return m.blockReason
}

// ReceiverVisible 接收方是否可见（创建时确定，撤回不改变）
func (m *Message) ReceiverVisible() bool {
	return m.receiverVisible
}

// ProjectsToViews 是否会投影到会话列表
// 被接收方拉黑时发出的消息只留在历史里，双方的会话行都不变
func (m *Message) ProjectsToViews() bool {
	return m.blockReason != valueobjects.BlockReasonReceiverBlocked
}

// IsRead 是否已读
func (m *Message) IsRead() bool {
	return m.read
}

// ReadAt 获取已读时间
func (m *Message) ReadAt() *time.Time {
	return m.readAt
}

// SenderDeleted 发送方是否已删除
func (m *Message) SenderDeleted() bool {
	return m.senderDeleted
}

// ReceiverDeleted 接收方是否已删除
func (m *Message) ReceiverDeleted() bool {
	return m.receiverDeleted
}

// CreatedAt 获取创建时间
func (m *Message) CreatedAt() time.Time {
	return m.createdAt
}

// IsWithdrawn 是否已撤回
func (m *Message) IsWithdrawn() bool {
	return m.status == valueobjects.DeliveryStatusWithdrawn
}

// IsParticipant 用户是否为消息的一方
func (m *Message) IsParticipant(userID string) bool {
	return userID == m.senderID || userID == m.receiverID
}

// OtherParty 返回相对于 userID 的另一方
func (m *Message) OtherParty(userID string) string {
	if userID == m.senderID {
		return m.receiverID
	}
	return m.senderID
}

// VisibleTo 用户是否能在历史中看到该消息
func (m *Message) VisibleTo(userID string) bool {
	switch userID {
	case m.senderID:
		return !m.senderDeleted
	case m.receiverID:
		return m.receiverVisible && !m.receiverDeleted
	default:
		return false
	}
}

// CanWithdraw 检查是否可以撤回
func (m *Message) CanWithdraw(now time.Time, window time.Duration) bool {
	return !m.IsWithdrawn() && now.Sub(m.createdAt) <= window
}

// Withdraw 发送者撤回消息，内容替换为占位符
func (m *Message) Withdraw(by string, now time.Time, window time.Duration) error {
	if by != m.senderID {
		return ErrNotMessageSender
	}
	if m.IsWithdrawn() {
		return ErrMessageWithdrawn
	}
	if now.Sub(m.createdAt) > window {
		return ErrWithdrawWindowPassed
	}
	m.status = valueobjects.DeliveryStatusWithdrawn
	m.content = WithdrawnContent
	m.mediaRef = ""
	return nil
}

// MarkDeletedBy 单侧软删除
func (m *Message) MarkDeletedBy(userID string) error {
	switch userID {
	case m.senderID:
		m.senderDeleted = true
	case m.receiverID:
		m.receiverDeleted = true
	default:
		return ErrNotMessageMember
	}
	return nil
}

// Preview 生成会话列表预览文本，按字符截断
func (m *Message) Preview(maxRunes int) string {
	if m.IsWithdrawn() {
		return WithdrawnContent
	}
	switch m.kind {
	case valueobjects.MessageKindImage:
		return "[image]"
	case valueobjects.MessageKindLink:
		return "[link] " + truncateRunes(m.content, maxRunes)
	case valueobjects.MessageKindText, valueobjects.MessageKindSystem:
		return truncateRunes(m.content, maxRunes)
	default:
		return ""
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}

// MessageDTO 消息数据传输对象
type MessageDTO struct {
	ID              string                      `json:"id"`
	SenderID        string                      `json:"senderId"`
	ReceiverID      string                      `json:"receiverId"`
	Content         string                      `json:"content"`
	MediaRef        string                      `json:"mediaRef,omitempty"`
	MediaURL        string                      `json:"mediaUrl,omitempty"`
	Kind            valueobjects.MessageKind    `json:"kind"`
	Status          valueobjects.DeliveryStatus `json:"status"`
	BlockReason     valueobjects.BlockReason    `json:"-"`
	ReceiverVisible bool                        `json:"-"`
	Read            bool                        `json:"read"`
	ReadAt          *time.Time                  `json:"readAt,omitempty"`
	SenderDeleted   bool                        `json:"-"`
	ReceiverDeleted bool                        `json:"-"`
	CreatedAt       time.Time                   `json:"createdAt"`
}

// ToDTO 转换为DTO
func (m *Message) ToDTO() MessageDTO {
	return MessageDTO{
		ID:              m.id,
		SenderID:        m.senderID,
		ReceiverID:      m.receiverID,
		Content:         m.content,
		MediaRef:        m.mediaRef,
		Kind:            m.kind,
		Status:          m.status,
		BlockReason:     m.blockReason,
		ReceiverVisible: m.receiverVisible,
		Read:            m.read,
		ReadAt:          m.readAt,
		SenderDeleted:   m.senderDeleted,
		ReceiverDeleted: m.receiverDeleted,
		CreatedAt:       m.createdAt,
	}
}

// FromMessageDTO 从DTO重建消息实体（用于仓储层）
func FromMessageDTO(dto MessageDTO) *Message {
	return &Message{
		id:              dto.ID,
		senderID:        dto.SenderID,
		receiverID:      dto.ReceiverID,
		content:         dto.Content,
		mediaRef:        dto.MediaRef,
		kind:            dto.Kind,
		status:          dto.Status,
		blockReason:     dto.BlockReason,
		receiverVisible: dto.ReceiverVisible,
		read:            dto.Read,
		readAt:          dto.ReadAt,
		senderDeleted:   dto.SenderDeleted,
		receiverDeleted: dto.ReceiverDeleted,
		createdAt:       dto.CreatedAt,
	}
}
