package valueobjects

// PairStatus 会话对状态。Established 为吸收态
type PairStatus string

const (
	PairStatusPending     PairStatus = "pending"
	PairStatusEstablished PairStatus = "established"
)

// IsValid 验证会话对状态是否有效
func (ps PairStatus) IsValid() bool {
	switch ps {
	case PairStatusPending, PairStatusEstablished:
		return true
	default:
		return false
	}
}

// String 返回字符串表示
func (ps PairStatus) String() string {
	return string(ps)
}

// IsEstablished 是否已建立
func (ps PairStatus) IsEstablished() bool {
	return ps == PairStatusEstablished
}
