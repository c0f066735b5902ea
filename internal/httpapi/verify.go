package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const signatureSkew = 5 * time.Minute

var errBadSignature = errors.New("slack signature mismatch")

// verifySlackSignature checks the Slack v0 request signature over the raw
// body. Requests older than the allowed skew are rejected to stop replays.
func verifySlackSignature(secret, timestamp, signature string, body []byte) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("bad signature timestamp: %w", err)
	}
	age := time.Since(time.Unix(ts, 0))
	if age > signatureSkew || age < -signatureSkew {
		return fmt.Errorf("signature timestamp outside allowed skew: %s", age)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errBadSignature
	}
	return nil
}
