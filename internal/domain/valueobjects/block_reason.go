package valueobjects

// BlockReason 记录消息被拦截的原因，仅用于内部审计与对账，不返回给发送方
type BlockReason string

const (
	BlockReasonNone               BlockReason = ""
	BlockReasonReceiverBlocked    BlockReason = "receiver_blocked"
	BlockReasonSenderBlocked      BlockReason = "sender_blocked"
	BlockReasonStrangerDisallowed BlockReason = "stranger_disallowed"
	BlockReasonKnockUsed          BlockReason = "knock_used"
)

// IsValid 验证拦截原因是否有效
func (r BlockReason) IsValid() bool {
	switch r {
	case BlockReasonNone, BlockReasonReceiverBlocked, BlockReasonSenderBlocked,
		BlockReasonStrangerDisallowed, BlockReasonKnockUsed:
		return true
	default:
		return false
	}
}

// String 返回字符串表示，空原因记为 none
func (r BlockReason) String() string {
	if r == BlockReasonNone {
		return "none"
	}
	return string(r)
}
