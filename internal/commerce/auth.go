package commerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// adminTokenPrefix is the fixed prefix Boulevard expects in admin auth payloads.
const adminTokenPrefix = "blvd-admin-v1"

// guestAuthHeader builds the HTTP basic credential for client-scoped calls:
// base64("<apiKey>:").
func guestAuthHeader(apiKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(apiKey + ":"))
}

// adminAuthHeader builds the HTTP basic credential for admin-scoped calls.
// The payload "blvd-admin-v1<businessID><unixTimestamp>" is signed with
// HMAC-SHA256 keyed by the base64-decoded API secret; the bearer token is the
// base64 signature concatenated with the payload.
func adminAuthHeader(apiKey, businessID, apiSecret string, now time.Time) (string, error) {
	rawKey, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return "", fmt.Errorf("API secret must be a base64-encoded string: %w", err)
	}

	payload := fmt.Sprintf("%s%s%d", adminTokenPrefix, businessID, now.Unix())
	mac := hmac.New(sha256.New, rawKey)
	mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	token := signature + payload
	return base64.StdEncoding.EncodeToString([]byte(apiKey + ":" + token)), nil
}
