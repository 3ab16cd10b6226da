package crypto

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// maxShares is the number of 4-byte slices a fingerprint can be split into.
const maxShares = FingerprintSize / shareSize

const (
	FingerprintSize = 32
	shareSize       = 4
)

var ErrInvalidShareCount = errors.New("invalid share count")

type (
	// Fingerprint is SHA3-256 digest of a trust record.
	Fingerprint [FingerprintSize]byte

	/*
	Share is one redundant slice of a fingerprint, stored under its own location
	so that the record can be checked even when some of the shares are lost.
	*/
	Share struct {
		Location string     `json:"location"`
		Pattern  [4]float64 `json:"pattern"`
	}
)

/*
TrustFingerprint hashes node id followed by the JSON encoding of the record.
Map keys are sorted by the JSON encoder so the result does not depend on map
iteration order.
*/
func TrustFingerprint(nodeID string, record any) (Fingerprint, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("encoding trust record: %w", err)
	}
	h := sha3.New256()
	h.Write([]byte(nodeID))
	h.Write(b)
	var fp Fingerprint
	h.Sum(fp[:0])
	return fp, nil
}

func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

func (fp Fingerprint) MarshalText() ([]byte, error) {
	return []byte(fp.String()), nil
}

func (fp *Fingerprint) UnmarshalText(b []byte) error {
	if hex.DecodedLen(len(b)) != FingerprintSize {
		return fmt.Errorf("invalid fingerprint length %d", len(b))
	}
	_, err := hex.Decode(fp[:], b)
	return err
}

/*
Shares splits the fingerprint into "count" shares, each carrying 4 bytes of
the digest scaled to [0,1].
*/
func Shares(nodeID string, fp Fingerprint, count int) ([]Share, error) {
	if count < 1 || count > maxShares {
		return nil, fmt.Errorf("%w: %d, must be in range 1..%d", ErrInvalidShareCount, count, maxShares)
	}
	shares := make([]Share, count)
	for i := range shares {
		shares[i].Location = fmt.Sprintf("loc_%s_%d", nodeID, i)
		for j := range shareSize {
			shares[i].Pattern[j] = float64(fp[i*shareSize+j]) / 255.0
		}
	}
	return shares, nil
}

/*
VerifyShares returns true when at least two of the shares (or the only one
when just one is available) match the fingerprint. Shares with unknown
location are ignored.
*/
func VerifyShares(nodeID string, fp Fingerprint, shares []Share) bool {
	expected, _ := Shares(nodeID, fp, maxShares)
	byLocation := make(map[string][4]float64, len(expected))
	for _, s := range expected {
		byLocation[s.Location] = s.Pattern
	}

	matches := 0
	for _, s := range shares {
		if p, ok := byLocation[s.Location]; ok && p == s.Pattern {
			matches++
		}
	}
	return matches >= min(2, len(shares)) && matches > 0
}

/*
RecordHash is the hex encoded digest identifying trust record of the node:
SHA3-256 of the fingerprint input is hashed three more times with SHA3-512,
each round over the hex encoding of the previous digest.
*/
func RecordHash(nodeID string, record any) (string, error) {
	fp, err := TrustFingerprint(nodeID, record)
	if err != nil {
		return "", err
	}
	digest := fp.String()
	for range 3 {
		sum := sha3.Sum512([]byte(digest))
		digest = hex.EncodeToString(sum[:])
	}
	return digest, nil
}
