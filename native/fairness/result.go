package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// DigestHexLen is the length of the hex-encoded HMAC-SHA256 result digest.
const DigestHexLen = 64

// GenerateResult derives the result digest for a single game outcome. The
// digest is HMAC-SHA256 keyed by the server seed over "clientSeed:nonce" and
// is the sole source of randomness for every extractor in this package. The
// function is pure: the same triplet always yields the same digest.
func GenerateResult(serverSeed, clientSeed string, nonce uint64) string {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(clientSeed + ":" + strconv.FormatUint(nonce, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashServerSeed returns the SHA-256 commitment published for a server seed
// before any bet is accepted against it.
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment reports whether the revealed server seed matches the
// previously published commitment.
func VerifyCommitment(serverSeed, serverSeedHash string) bool {
	expected := HashServerSeed(serverSeed)
	return strings.EqualFold(expected, strings.TrimSpace(serverSeedHash))
}

// UnitFloat maps the digest onto [0,1) by interpreting the first eight hex
// characters as an unsigned 32-bit integer and dividing by 0xFFFFFFFF.
func UnitFloat(digest string) (float64, error) {
	n, err := digestInt(digest)
	if err != nil {
		return 0, err
	}
	return float64(n) / float64(0xFFFFFFFF), nil
}

// digestInt parses the first eight hex characters of the digest as an
// unsigned 32-bit integer.
func digestInt(digest string) (uint64, error) {
	if len(digest) < 8 {
		return 0, fmt.Errorf("fairness: digest too short: %d chars", len(digest))
	}
	n, err := strconv.ParseUint(digest[:8], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("fairness: malformed digest: %w", err)
	}
	return n, nil
}

// digestByte returns the idx-th byte of the decoded digest.
func digestByte(digest string, idx int) (byte, error) {
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return 0, fmt.Errorf("fairness: malformed digest: %w", err)
	}
	if idx < 0 || idx >= len(raw) {
		return 0, fmt.Errorf("fairness: digest byte %d out of range", idx)
	}
	return raw[idx], nil
}

// digestSeed32 derives the 32-bit LCG seed from the first four digest bytes,
// big-endian. Mines and keno draws depend on this exact derivation; player
// verification reproduces it bit for bit.
func digestSeed32(digest string) (uint32, error) {
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return 0, fmt.Errorf("fairness: malformed digest: %w", err)
	}
	if len(raw) < 4 {
		return 0, fmt.Errorf("fairness: digest too short: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint32(raw[:4]), nil
}
