package transcription

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strconv"
	"time"
)

// Sign produces the HMAC-SHA1 signature spec §4.E requires: computed over
// (appID || timestamp), base64-encoded, URL-escaped. This is a simplified
// sibling of credentials.signRequest's AWS SigV4 derivation (same
// crypto/hmac + crypto/sha256 primitives, here crypto/sha1 per the vendor
// contract, and a single HMAC pass rather than SigV4's four-step key
// derivation since the vendor's scheme has no region/service scoping).
func Sign(appID, apiKey string, timestamp int64) string {
	ts := strconv.FormatInt(timestamp, 10)
	mac := hmac.New(sha1.New, []byte(apiKey))
	mac.Write([]byte(appID + ts))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return url.QueryEscape(sig)
}

// SignedURL builds the connect URL for the ASR vendor: baseURL with
// app_id, timestamp (unix seconds) and the computed signature appended
// as query parameters.
func SignedURL(baseURL, appID, apiKey string) string {
	timestamp := time.Now().Unix()
	sig := Sign(appID, apiKey, timestamp)
	sep := "?"
	if containsQuery(baseURL) {
		sep = "&"
	}
	return baseURL + sep + "app_id=" + url.QueryEscape(appID) +
		"&ts=" + strconv.FormatInt(timestamp, 10) +
		"&signature=" + sig
}

func containsQuery(u string) bool {
	for _, c := range u {
		if c == '?' {
			return true
		}
	}
	return false
}
