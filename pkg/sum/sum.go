package sum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

var ErrMismatch = errors.New("checksum mismatch")

// FileDigest computes the hex-encoded SHA-256 digest of the file at
// path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s for digest", path)
	}

	defer f.Close()

	h := sha256.New()

	_, err = io.Copy(h, f)
	if err != nil {
		return "", errors.Wrapf(err, "digesting %s", path)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify compares a computed digest against an expected one. The
// comparison is byte-exact: no case folding, no normalization. A
// checksum recorded with different hex casing is a mismatch.
func Verify(computed, expected string) bool {
	return computed == expected
}

// ValidateFile digests path and checks it against expected. Callers
// gating a downloaded artifact must treat an error here as fatal and
// never install the unverified file.
func ValidateFile(path, expected string) error {
	computed, err := FileDigest(path)
	if err != nil {
		return err
	}

	if !Verify(computed, expected) {
		return errors.Wrapf(ErrMismatch, "%s: computed %s, expected %s", path, computed, expected)
	}

	return nil
}
