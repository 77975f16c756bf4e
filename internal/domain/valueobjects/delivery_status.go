package valueobjects

// DeliveryStatus 投递状态：创建时由投递闸门判定一次，之后只能转为 Withdrawn
type DeliveryStatus uint8

const (
	DeliveryStatusDelivered DeliveryStatus = iota + 1
	DeliveryStatusPending
	DeliveryStatusBlocked
	DeliveryStatusWithdrawn
)

// IsValid 验证状态是否有效
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusPending, DeliveryStatusBlocked, DeliveryStatusWithdrawn:
		return true
	default:
		return false
	}
}

// VisibleToReceiver 该状态在创建时是否对接收方可见
func (s DeliveryStatus) VisibleToReceiver() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusPending:
		return true
	case DeliveryStatusBlocked, DeliveryStatusWithdrawn:
		return false
	default:
		return false
	}
}

// DrivesConversation 是否参与会话状态机推进
func (s DeliveryStatus) DrivesConversation() bool {
	return s.VisibleToReceiver()
}

// Outcome 面向发送方的结果描述；被拦截时不区分原因
func (s DeliveryStatus) Outcome() string {
	switch s {
	case DeliveryStatusDelivered:
		return "delivered"
	case DeliveryStatusPending:
		return "pending"
	case DeliveryStatusBlocked:
		return "blocked"
	case DeliveryStatusWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// String 返回字符串表示
func (s DeliveryStatus) String() string {
	return s.Outcome()
}

func (s DeliveryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
