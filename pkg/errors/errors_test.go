package errors

import (
	stderrors "errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_CodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeInvalidArgument, CodeOf(ErrSelfMessage))
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("boom")))
	// 经过包装后仍能取到错误码
	assert.Equal(t, CodeNotFound, CodeOf(pkgerrors.Wrap(ErrUserNotFound, "lookup")))
}

func Test_AppError_Is(t *testing.T) {
	t.Run("happy path - sentinel matches through wrap", func(t *testing.T) {
		err := pkgerrors.Wrap(ErrAlreadyWithdrawn, "withdraw")
		assert.True(t, stderrors.Is(err, ErrAlreadyWithdrawn))
		assert.False(t, stderrors.Is(err, ErrWithdrawExpired))
	})

	t.Run("store unavailable keeps cause", func(t *testing.T) {
		cause := stderrors.New("conn refused")
		err := ErrStoreUnavailable(cause)
		assert.Equal(t, CodeUnavailable, CodeOf(err))
		assert.True(t, stderrors.Is(err, cause))
		assert.Contains(t, err.Error(), "conn refused")
	})
}
