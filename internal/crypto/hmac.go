package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Request authentication header names sent to REST venues.
const (
	HeaderKey        = "X-VB-KEY"
	HeaderTimestamp  = "X-VB-TIMESTAMP"
	HeaderPassphrase = "X-VB-PASSPHRASE"
	HeaderSignature  = "X-VB-SIGNATURE"
)

// HMACAuth holds the API credentials of one REST venue.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret, base64 or raw
	Passphrase string // API passphrase
}

// Configured reports whether any credential is present.
func (h *HMACAuth) Configured() bool {
	return h != nil && h.Key != ""
}

// Headers returns the authentication headers for a request. The signature
// is base64(HMAC-SHA256(secret, timestamp+method+path+body)).
func (h *HMACAuth) Headers(method, path, body string) map[string]string {
	return h.HeadersAt(method, path, body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp.
func (h *HMACAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	sig := Sign(h.secretBytes(), ts+method+path+body)

	return map[string]string{
		HeaderKey:        h.Key,
		HeaderTimestamp:  ts,
		HeaderPassphrase: h.Passphrase,
		HeaderSignature:  sig,
	}
}

// Sign computes base64(HMAC-SHA256(key, message)).
func Sign(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// secretBytes decodes a base64 secret, falling back to the raw bytes so a
// malformed secret yields a rejected signature rather than a panic.
func (h *HMACAuth) secretBytes() []byte {
	if b, err := base64.StdEncoding.DecodeString(h.Secret); err == nil && len(b) > 0 {
		return b
	}
	return []byte(h.Secret)
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	mask := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", mask(h.Key), mask(h.Secret))
}
