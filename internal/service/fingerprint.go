package service

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// fingerprint hashes the operation name and its parameters. Reusing an
// idempotency key with a different fingerprint is a conflict, not a replay.
// The operation name is part of the hash, so transfer and originate share
// one key namespace without ambiguity.
func fingerprint(op string, parts ...string) string {
	h := sha256.New()
	io.WriteString(h, op)
	for _, part := range parts {
		h.Write([]byte{0})
		io.WriteString(h, part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
