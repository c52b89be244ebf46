package resilience

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Fingerprint hashes a stage name together with a canonical encoding of
// its input. encoding/json writes map keys in sorted order, so equal
// content produces equal fingerprints regardless of representation
// order.
func Fingerprint(stage string, input interface{}) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", stage, err)
	}
	h := sha256.New()
	io.WriteString(h, stage)
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
