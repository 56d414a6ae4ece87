package fetch

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Supported digest algorithms.
const (
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
	AlgorithmBLAKE3 = "blake3"
)

// ErrDigestMismatch is returned when a file's content does not hash to the
// expected value.
var ErrDigestMismatch = errors.New("digest mismatch")

// Digest is an expected content hash.
//
// The textual form is "<algorithm>:<hex>". A bare 40-character hex value is
// read as SHA-1, which is how the upstream release pins are published.
type Digest struct {
	Algorithm string
	Hex       string
}

// ParseDigest parses the textual digest form.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Digest{}, fmt.Errorf("digest is empty")
	}

	algo, value, ok := strings.Cut(s, ":")
	if !ok {
		algo, value = AlgorithmSHA1, s
	}
	algo = strings.ToLower(algo)
	value = strings.ToLower(value)

	size, known := digestSizes[algo]
	if !known {
		return Digest{}, fmt.Errorf("unknown digest algorithm %q", algo)
	}
	if len(value) != size*2 {
		return Digest{}, fmt.Errorf("%s digest must be %d hex characters, got %d", algo, size*2, len(value))
	}
	if _, err := hex.DecodeString(value); err != nil {
		return Digest{}, fmt.Errorf("%s digest %q is not hex", algo, value)
	}
	return Digest{Algorithm: algo, Hex: value}, nil
}

// String returns the canonical "<algorithm>:<hex>" form.
func (d Digest) String() string {
	return d.Algorithm + ":" + d.Hex
}

var digestSizes = map[string]int{
	AlgorithmSHA1:   sha1.Size,
	AlgorithmSHA256: sha256.Size,
	AlgorithmBLAKE3: 32,
}

func (d Digest) newHash() hash.Hash {
	switch d.Algorithm {
	case AlgorithmSHA256:
		return sha256.New()
	case AlgorithmBLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// check compares a computed sum against d.
func (d Digest) check(path string, sum []byte) error {
	got := hex.EncodeToString(sum)
	if got != d.Hex {
		return fmt.Errorf("%s: %w: want %s:%s, got %s:%s", path, ErrDigestMismatch, d.Algorithm, d.Hex, d.Algorithm, got)
	}
	return nil
}

// Verify hashes the file at path and compares it with the expected digest.
func Verify(path, digest string) error {
	d, err := ParseDigest(digest)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := d.newHash()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}
	return d.check(path, h.Sum(nil))
}

// Sum returns the hex digest of the file at path using algorithm.
func Sum(path, algorithm string) (string, error) {
	if _, ok := digestSizes[algorithm]; !ok {
		return "", fmt.Errorf("unknown digest algorithm %q", algorithm)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := Digest{Algorithm: algorithm}.newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
