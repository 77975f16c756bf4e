package errors

var (
	// 业务错误，供用例与接口层使用
	ErrSelfMessage        = InvalidArg("cannot send a message to yourself")
	ErrSelfBlock          = InvalidArg("cannot block yourself")
	ErrEmptyContent       = InvalidArg("message content cannot be empty")
	ErrContentTooLong     = InvalidArg("message content is too long")
	ErrInvalidUserID      = InvalidArg("invalid user id")
	ErrInvalidMessageID   = InvalidArg("invalid message id")
	ErrInvalidKind        = InvalidArg("unsupported message kind")
	ErrMediaRefRequired   = InvalidArg("image message requires a media reference")
	ErrInvalidLink        = InvalidArg("link message must be an http(s) url")
	ErrUserNotFound       = NotFound("user not found")
	ErrMessageNotFound    = NotFound("message not found")
	ErrNotParticipant     = Forbidden("not a participant of this message")
	ErrNotSender          = Forbidden("only the sender can withdraw a message")
	ErrWithdrawExpired    = FailedPrecondition("withdraw window has passed")
	ErrAlreadyWithdrawn   = FailedPrecondition("message already withdrawn")
	ErrMessagingDisabled  = FailedPrecondition("private messaging is disabled")
	ErrSendRateLimited    = TooManyRequests("sending too fast, slow down")
	ErrConversationAbsent = NotFound("conversation not found")
)

func ErrStoreUnavailable(cause error) error {
	return Unavailable("message store unavailable", cause)
}
