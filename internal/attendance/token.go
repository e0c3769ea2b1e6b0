package attendance

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const payloadType = "attendance"

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Payload is the JSON document shown by kiosks and read by the scanner.
type Payload struct {
	Type         string          `json:"type"`
	Timestamp    json.RawMessage `json:"timestamp"`
	LocationName string          `json:"locationName,omitempty"`
}

// EncodePayload renders the kiosk payload for a code issued at issuedAt.
func EncodePayload(issuedAt time.Time, locationName string) (string, error) {
	ts, err := json.Marshal(issuedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(Payload{Type: payloadType, Timestamp: ts, LocationName: locationName})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseIssuedAt extracts the issuance time from a scanned payload. Naive timestamps are
// interpreted in loc.
func ParseIssuedAt(payload string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(payload)
	if raw == "" {
		return time.Time{}, reject(KindMalformedToken, "empty_token")
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.HasPrefix(raw, "{") {
		return parseJSONPayload([]byte(raw), loc)
	}
	return parseTimestamp(raw, loc)
}

func parseJSONPayload(data []byte, loc *time.Location) (time.Time, error) {
	var p Payload
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&p); err != nil {
		return time.Time{}, reject(KindMalformedToken, "invalid_token_json")
	}
	if p.Type != "" && p.Type != payloadType {
		return time.Time{}, reject(KindMalformedToken, "unsupported_token_type")
	}
	if len(p.Timestamp) == 0 || string(p.Timestamp) == "null" {
		return time.Time{}, reject(KindMalformedToken, "missing_timestamp")
	}
	var text string
	if err := json.Unmarshal(p.Timestamp, &text); err == nil {
		return parseTimestamp(strings.TrimSpace(text), loc)
	}
	var number json.Number
	if err := json.Unmarshal(p.Timestamp, &number); err == nil {
		return parseTimestamp(number.String(), loc)
	}
	return time.Time{}, reject(KindMalformedToken, "invalid_timestamp")
}

func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, reject(KindMalformedToken, "missing_timestamp")
	}
	if isDigits(value) {
		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil || seconds <= 0 {
			return time.Time{}, reject(KindMalformedToken, "invalid_timestamp")
		}
		return time.Unix(seconds, 0).UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, reject(KindMalformedToken, "invalid_timestamp")
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

// CheckFreshness accepts a payload issued at T iff 0 <= now-T <= window.
func CheckFreshness(payload string, now time.Time, window time.Duration, loc *time.Location) (time.Time, error) {
	issuedAt, err := ParseIssuedAt(payload, loc)
	if err != nil {
		return time.Time{}, err
	}
	elapsed := now.Sub(issuedAt)
	if elapsed < 0 {
		return issuedAt, reject(KindExpiredToken, "token_not_yet_valid")
	}
	if elapsed > window {
		return issuedAt, reject(KindExpiredToken, "token_expired")
	}
	return issuedAt, nil
}
