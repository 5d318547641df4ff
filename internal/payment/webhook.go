package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrSignatureVerification = errors.New("webhook signature verification failed")

// DefaultTolerance bounds the age of a signed event. Events whose timestamp
// differs from now by more than this are rejected to limit replay.
const DefaultTolerance = 300 * time.Second

// ConstructEvent verifies the signature header against the raw payload and
// returns the parsed event envelope. The header carries a unix timestamp and
// one or more HMAC-SHA256 digests of "<t>.<payload>":
//
//	t=1700000000,v1=5257a86...,v1=deadbeef...
func ConstructEvent(payload []byte, sigHeader, secret string) (Event, error) {
	return constructEventAt(payload, sigHeader, secret, DefaultTolerance, time.Now())
}

func constructEventAt(payload []byte, sigHeader, secret string, tolerance time.Duration, now time.Time) (Event, error) {
	var event Event

	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return event, err
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return event, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureVerification)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	matched := false
	for _, sig := range sigs {
		if hmac.Equal(sig, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return event, fmt.Errorf("%w: no matching v1 signature", ErrSignatureVerification)
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("parse event payload: %w", err)
	}
	return event, nil
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrSignatureVerification)
	}

	var ts int64 = -1
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrSignatureVerification)
			}
			ts = parsed
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}

	if ts < 0 {
		return 0, nil, fmt.Errorf("%w: missing timestamp", ErrSignatureVerification)
	}
	if len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: missing v1 signature", ErrSignatureVerification)
	}
	return ts, sigs, nil
}
