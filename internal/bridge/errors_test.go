package bridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := &Error{Code: ErrCodeNotPublished, Message: "not published", PostID: 42}
	assert.Equal(t, "NOT_PUBLISHED: not published (post=42)", err.Error())

	err = NewValidationError("title is empty")
	assert.Equal(t, "VALIDATION: title is empty", err.Error())
}

func TestIsHelpers_Wrapped(t *testing.T) {
	base := NewTransportError("broadcast", errors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("publish post 7: %w", base)

	assert.True(t, IsTransportError(wrapped))
	assert.False(t, IsRemoteRejection(wrapped))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Equal(t, ErrCodeTransport, CodeOf(wrapped))
}

func TestUserMessage(t *testing.T) {
	t.Run("transport is generic", func(t *testing.T) {
		err := NewTransportError("broadcast", errors.New("dial tcp 10.0.0.5:443: refused"))
		msg := UserMessage(err)
		assert.Equal(t, transportMessage, msg)
		assert.NotContains(t, msg, "10.0.0.5")
	})

	t.Run("rejection is verbatim", func(t *testing.T) {
		err := NewRemoteRejection("broadcast", errors.New("missing posting authority"))
		assert.Equal(t, "broadcast rejected: missing posting authority", UserMessage(err))
	})

	t.Run("configuration is verbatim", func(t *testing.T) {
		assert.Equal(t, "account is not configured", UserMessage(NewConfigurationError("account is not configured")))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, "", UserMessage(nil))
	})
}

func TestRemoteReply_Keys(t *testing.T) {
	r := RemoteReply{Author: "Alice", Permlink: "Re-Post-1", ParentAuthor: "Bob", ParentPermlink: "hello"}
	assert.Equal(t, "alice/re-post-1", r.DedupKey())
	assert.Equal(t, "bob/hello", r.ParentKey())

	r.ParentAuthor = ""
	assert.Equal(t, "", r.ParentKey())
}

func TestPublishRecord_OK(t *testing.T) {
	assert.True(t, PublishRecord{Author: "op", Permlink: "p"}.OK())
	assert.False(t, PublishRecord{Author: "op", Permlink: "p", Error: "boom"}.OK())
	assert.False(t, PublishRecord{}.OK())
}
