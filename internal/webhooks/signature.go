package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the payment provider's payload signature.
const SignatureHeader = "X-Payment-Signature"

var (
	ErrBadSignature   = errors.New("webhooks: signature verification failed")
	ErrStaleTimestamp = errors.New("webhooks: signature timestamp outside tolerance")
)

// Sign produces the signature header value for a payload at a timestamp:
//
//	t=<unix>,v1=<hex hmac-sha256 of "<unix>.<payload>">
func Sign(secret []byte, ts time.Time, payload []byte) string {
	mac := computeMAC(secret, ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac))
}

// VerifySignature checks the header against the raw request body. The scheme
// allows multiple v1 entries so the sender can rotate secrets; any valid one
// passes. Verification runs on the raw bytes, before any JSON parsing.
func VerifySignature(secret []byte, header string, payload []byte, now time.Time, tolerance time.Duration) error {
	ts, macs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		age := now.Unix() - ts
		if age < 0 {
			age = -age
		}
		if age > int64(tolerance.Seconds()) {
			return ErrStaleTimestamp
		}
	}

	want := computeMAC(secret, ts, payload)
	for _, m := range macs {
		if hmac.Equal(m, want) {
			return nil
		}
	}
	return ErrBadSignature
}

func parseSignatureHeader(header string) (ts int64, macs [][]byte, err error) {
	if header == "" {
		return 0, nil, ErrBadSignature
	}
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, ErrBadSignature
			}
		case "v1":
			mac, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			macs = append(macs, mac)
		}
	}
	if ts == 0 || len(macs) == 0 {
		return 0, nil, ErrBadSignature
	}
	return ts, macs, nil
}

func computeMAC(secret []byte, ts int64, payload []byte) []byte {
	h := hmac.New(sha256.New, secret)
	fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return h.Sum(nil)
}
