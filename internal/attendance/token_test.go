package attendance

import (
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestCheckFreshnessWindow(t *testing.T) {
	issued := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	payload := issued.Format(time.RFC3339)
	window := 5 * time.Minute

	if _, err := CheckFreshness(payload, issued, window, time.UTC); err != nil {
		t.Fatalf("expected token valid at issuance, got %v", err)
	}
	if _, err := CheckFreshness(payload, issued.Add(window), window, time.UTC); err != nil {
		t.Fatalf("expected token valid at exactly the window, got %v", err)
	}
	if _, err := CheckFreshness(payload, issued.Add(window+time.Second), window, time.UTC); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token, got %v", err)
	}
	_, err := CheckFreshness(payload, issued.Add(-time.Second), window, time.UTC)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected future token to be rejected, got %v", err)
	}
	if rej, _ := AsReject(err); rej.Detail != "token_not_yet_valid" {
		t.Fatalf("expected token_not_yet_valid, got %s", rej.Detail)
	}
}

func TestParseIssuedAtFormats(t *testing.T) {
	loc := time.FixedZone("EAT", 3*3600)
	want := time.Date(2026, 3, 2, 8, 30, 0, 0, loc)

	kiosk, err := EncodePayload(want, "Main Gate")
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	cases := map[string]string{
		"rfc3339":      want.Format(time.RFC3339),
		"local":        "2026-03-02 08:30:00",
		"local-t":      "2026-03-02T08:30:00",
		"unix":         strconv.FormatInt(want.Unix(), 10),
		"kiosk":        kiosk,
		"json-number":  `{"type":"attendance","timestamp":` + strconv.FormatInt(want.Unix(), 10) + `}`,
		"json-no-type": `{"timestamp":"2026-03-02 08:30:00"}`,
		"padded":       "  " + want.Format(time.RFC3339) + "\n",
	}
	for name, payload := range cases {
		got, err := ParseIssuedAt(payload, loc)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestParseIssuedAtMalformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not a timestamp",
		"2026-13-40 99:00:00",
		`{"type":"attendance"}`,
		`{"type":"attendance","timestamp":null}`,
		`{"type":"event","timestamp":"2026-03-02T08:30:00Z"}`,
		`{"type":"attendance","timestamp":true}`,
		`{"type":`,
		"0",
	}
	for _, payload := range cases {
		if _, err := ParseIssuedAt(payload, time.UTC); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("payload %q: expected malformed token, got %v", payload, err)
		}
	}
}
