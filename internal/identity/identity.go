// Package identity derives the pseudonymous conversation keys used to route a
// device's turns to the same backend conversation.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	hashLength = 32

	unknownApp    = "unknown-app"
	unknownUser   = "unknown-user"
	unknownDevice = "unknown-device"

	senderPrefix = "alexa"
)

// Fields are the per-turn identity values supplied by the voice platform.
type Fields struct {
	AppID     string
	UserID    string
	DeviceID  string
	RequestID string
}

// Context is the routing envelope for one turn. It is never persisted.
type Context struct {
	ConversationID string
	SenderID       string
	UserHash       string
	RequestID      string
}

// Hash returns a stable truncated SHA-256 digest of the salted identity.
// Missing ids are replaced by sentinels so the result is always defined.
// Each part is length-prefixed so no two tuples hash the same input.
func Hash(appID, userID, deviceID, salt string) string {
	h := sha256.New()
	for _, p := range []string{
		salt,
		orSentinel(appID, unknownApp),
		orSentinel(userID, unknownUser),
		orSentinel(deviceID, unknownDevice),
	} {
		fmt.Fprintf(h, "%d:%s", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))[:hashLength]
}

// NewContext builds the turn's routing envelope.
func NewContext(f Fields, prefix, salt string) Context {
	userHash := Hash(f.AppID, f.UserID, f.DeviceID, salt)
	return Context{
		ConversationID: prefix + ":" + userHash,
		SenderID:       senderPrefix + ":" + userHash,
		UserHash:       userHash,
		RequestID:      strings.TrimSpace(f.RequestID),
	}
}

func orSentinel(value, sentinel string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return sentinel
	}
	return value
}
