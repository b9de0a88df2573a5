package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTrace prefixes digests of lifecycle traces. The version suffix
// allows changing the digest input later without colliding with old values.
const DomainTrace = "rrcproc/trace/v1"

// Digest returns SHA256(domain + 0x00 + data) as hex.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestValue canonicalizes v and digests it under domain.
func DigestValue(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Digest(domain, data), nil
}
