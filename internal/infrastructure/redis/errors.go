package redis

import (
	"fmt"
	"strings"

	"github.com/nerrad567/ego-bridge/internal/transport"
)

// fatalReplies are Redis error prefixes that a retry cannot fix.
var fatalReplies = []string{
	"NOAUTH",
	"WRONGPASS",
	"NOPERM",
	"ERR invalid password",
	"ERR AUTH",
	"ERR DB index is out of range",
}

// classifyConnectError wraps err with transport.ErrConnectionFailed, and
// additionally with transport.ErrFatal for authentication and selection errors.
func classifyConnectError(err error) error {
	msg := err.Error()
	for _, prefix := range fatalReplies {
		if strings.HasPrefix(msg, prefix) {
			return fmt.Errorf("%w: %w: %w", transport.ErrFatal, transport.ErrConnectionFailed, err)
		}
	}
	return fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err)
}
