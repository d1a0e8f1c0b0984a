// Package sri implements Subresource Integrity verification.
//
// The package is split into three parts:
//   - digest.go: base64 digests for the SHA-2 algorithms SRI admits
//   - integrity.go: parsing an integrity attribute into a Declaration
//   - verifier.go: the per-reference decision sequence producing a model.Outcome
//
// Design decision: Algorithms form a closed enumeration matched with an
// exhaustive switch. Any token other than sha256, sha384 or sha512 maps to
// AlgorithmUnsupported and is never hashed with a fallback algorithm.
//
// The Verifier holds no per-reference state and may be shared between
// goroutines.
package sri
