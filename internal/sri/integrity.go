package sri

import "strings"

// Declaration is the parsed form of an integrity attribute value.
type Declaration struct {
	// Algorithm is the recognised algorithm, or AlgorithmUnsupported.
	Algorithm Algorithm

	// Token is the raw algorithm token before the first "-".
	Token string

	// Expected is the declared base64 digest, trimmed of surrounding whitespace.
	Expected string
}

// ParseIntegrity splits an integrity attribute value into a Declaration.
//
// Surrounding whitespace of the whole value is ignored. The value is split on
// the first "-" only; everything after it is the expected digest. A value
// with no separator returns ErrMalformedIntegrity and an empty value returns
// ErrEmptyIntegrity. An unrecognised algorithm token is not an error here:
// the Declaration carries AlgorithmUnsupported and the Verifier reports it.
func ParseIntegrity(value string) (Declaration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Declaration{}, ErrEmptyIntegrity
	}

	token, expected, found := strings.Cut(value, "-")
	if !found {
		return Declaration{}, ErrMalformedIntegrity
	}

	return Declaration{
		Algorithm: ParseAlgorithm(token),
		Token:     token,
		Expected:  strings.TrimSpace(expected),
	}, nil
}
