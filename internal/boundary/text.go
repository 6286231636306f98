// ABOUTME: Inbound and outbound text validation at the C string boundary
// ABOUTME: NULL and invalid UTF-8 fail closed before any engine call

package boundary

import (
	"strings"
	"unicode/utf8"
)

// requireText converts a mandatory C string parameter. nil means the
// caller passed NULL; byte slices that are not valid UTF-8 are rejected
// rather than silently replaced.
func requireText(data []byte, param string) (string, *Fault) {
	if data == nil {
		return "", nullPointer(param)
	}
	if !utf8.Valid(data) {
		return "", invalidUTF8(param)
	}
	return string(data), nil
}

// outboundText guards strings leaving through C. An embedded NUL would
// truncate at the terminator on the far side, so the operation fails
// closed instead of returning a silently shortened value.
func outboundText(s, what string) (string, *Fault) {
	if strings.ContainsRune(s, 0) {
		return "", newFault(CodeInvalidUTF8, "%s contains a NUL byte and cannot cross the C string boundary", what)
	}
	return s, nil
}
