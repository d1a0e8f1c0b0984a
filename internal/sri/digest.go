package sri

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
)

// Algorithm is a hash algorithm that may appear in an integrity attribute.
type Algorithm int

const (
	// AlgorithmUnsupported is any token that is not a recognised SHA-2 variant.
	AlgorithmUnsupported Algorithm = iota

	// AlgorithmSHA256 is "sha256".
	AlgorithmSHA256

	// AlgorithmSHA384 is "sha384".
	AlgorithmSHA384

	// AlgorithmSHA512 is "sha512".
	AlgorithmSHA512
)

// String returns the token used in integrity attributes.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmSHA256:
		return "sha256"
	case AlgorithmSHA384:
		return "sha384"
	case AlgorithmSHA512:
		return "sha512"
	case AlgorithmUnsupported:
		return "unsupported"
	default:
		return "unsupported"
	}
}

// Supported reports whether digests can be computed for the algorithm.
func (a Algorithm) Supported() bool {
	switch a {
	case AlgorithmSHA256, AlgorithmSHA384, AlgorithmSHA512:
		return true
	case AlgorithmUnsupported:
		return false
	default:
		return false
	}
}

// ParseAlgorithm maps an algorithm token to an Algorithm.
// Matching is case-sensitive: "SHA256" is unsupported.
func ParseAlgorithm(token string) Algorithm {
	switch token {
	case "sha256":
		return AlgorithmSHA256
	case "sha384":
		return AlgorithmSHA384
	case "sha512":
		return AlgorithmSHA512
	default:
		return AlgorithmUnsupported
	}
}

// Digest returns the standard, padded base64 encoding of data's digest
// under alg. It returns ErrUnsupportedAlgorithm for any other algorithm.
func Digest(data []byte, alg Algorithm) (string, error) {
	var sum []byte
	switch alg {
	case AlgorithmSHA256:
		s := sha256.Sum256(data)
		sum = s[:]
	case AlgorithmSHA384:
		s := sha512.Sum384(data)
		sum = s[:]
	case AlgorithmSHA512:
		s := sha512.Sum512(data)
		sum = s[:]
	case AlgorithmUnsupported:
		return "", ErrUnsupportedAlgorithm
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, int(alg))
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// Integrity returns a complete integrity attribute value ("sha384-...")
// for data. It is the inverse of ParseIntegrity and is used by tests and the
// report writers when suggesting a replacement value.
func Integrity(data []byte, alg Algorithm) (string, error) {
	digest, err := Digest(data, alg)
	if err != nil {
		return "", err
	}
	return alg.String() + "-" + digest, nil
}
