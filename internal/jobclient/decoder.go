package jobclient

import (
	"encoding/json"
	"strings"

	"novelstudio/internal/domain"
)

// Decoded is the outcome of decoding a terminal payload: either OK with a
// payload, or empty. A malformed payload is empty, never an error.
type Decoded struct {
	Payload *domain.ResultPayload
	OK      bool
}

// Empty reports whether nothing usable was decoded.
func (d Decoded) Empty() bool {
	return !d.OK
}

// Decode parses the string-encoded ResultPayload carried by a completed
// status response.
func Decode(raw string) Decoded {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Decoded{}
	}
	var payload *domain.ResultPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload == nil {
		return Decoded{}
	}
	return Decoded{Payload: payload, OK: true}
}
