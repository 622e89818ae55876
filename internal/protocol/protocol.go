package protocol

import "encoding/json"

const Version = "0.3"

// Message types on the observer feed.
const (
	TypeSubscribe    = "SUBSCRIBE"
	TypeTickDigest   = "TICK_DIGEST"
	TypeNotification = "NOTIFICATION"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
