package source

import (
	"bytes"
	"encoding/json"
	"strings"
)

type queryMessage struct {
	Query string `json:"query"`
}

// DecodeQuery extracts a query from a Kafka message value. A JSON object
// is unwrapped to its "query" field, which is empty when absent; anything
// that does not parse as an object is the raw query text.
func DecodeQuery(value []byte) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg queryMessage
		if err := json.Unmarshal(trimmed, &msg); err == nil {
			return msg.Query
		}
	}
	return strings.TrimRight(string(value), "\r\n")
}
