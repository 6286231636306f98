// ABOUTME: Tests for inbound and outbound text validation
// ABOUTME: NULL, invalid UTF-8 and embedded NUL all fail with their own codes

package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireText(t *testing.T) {
	value, fault := requireText([]byte("notes/a.txt"), "uri")
	require.Nil(t, fault)
	assert.Equal(t, "notes/a.txt", value)
}

func TestRequireText_Null(t *testing.T) {
	_, fault := requireText(nil, "uri")
	require.NotNil(t, fault)
	assert.Equal(t, CodeNullPointer, fault.Code)
	assert.Contains(t, fault.Message, "uri")
}

func TestRequireText_EmptyIsNotNull(t *testing.T) {
	value, fault := requireText([]byte{}, "uri")
	require.Nil(t, fault)
	assert.Empty(t, value)
}

func TestRequireText_InvalidUTF8(t *testing.T) {
	_, fault := requireText([]byte{0xc3, 0x28}, "path")
	require.NotNil(t, fault)
	assert.Equal(t, CodeInvalidUTF8, fault.Code)
	assert.Contains(t, fault.Message, "path")
}

func TestOutboundText(t *testing.T) {
	value, fault := outboundText("plain content", "content")
	require.Nil(t, fault)
	assert.Equal(t, "plain content", value)
}

func TestOutboundText_EmbeddedNUL(t *testing.T) {
	_, fault := outboundText("cut\x00off", "content of frame 3")
	require.NotNil(t, fault)
	assert.Equal(t, CodeInvalidUTF8, fault.Code)
	assert.Contains(t, fault.Message, "content of frame 3")
	assert.Contains(t, fault.Message, "NUL")
}
