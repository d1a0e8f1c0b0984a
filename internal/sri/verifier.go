package sri

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/sricheck/internal/model"
)

// Report details. The missing-hash and mismatch messages are part of the
// line-oriented report format that users grep for, so keep them stable.
const (
	DetailMissingIntegrity  = "Missing SRI hash"
	DetailMissingResource   = "Missing resource URL"
	DetailMalformed         = "Malformed integrity value"
	DetailHashMismatch      = "Calculated hash does not match expected hash!"
	DetailValid             = "Valid SRI hash"
	detailUnsupportedFormat = "Unsupported hash algorithm %q"
	detailFetchFailedFormat = "Failed to fetch resource %s"
)

// Fetcher downloads the raw bytes of a resource.
// fetch.Client satisfies this interface.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Verifier checks references against their declared integrity hashes.
type Verifier struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithLogger sets a custom logger for the verifier.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a Verifier that downloads resources with fetcher.
func NewVerifier(fetcher Fetcher, opts ...VerifierOption) *Verifier {
	v := &Verifier{fetcher: fetcher}

	for _, opt := range opts {
		opt(v)
	}

	if v.logger == nil {
		v.logger = slog.Default()
	}

	return v
}

// Verify produces the outcome for one reference.
//
// The checks run in a fixed order and stop at the first failure:
// integrity presence, resource URL presence, integrity syntax and algorithm,
// fetch, digest, comparison. The resource is fetched at most once and only
// when the declaration is well formed and its algorithm is supported.
func (v *Verifier) Verify(ctx context.Context, ref model.Reference) model.Outcome {
	outcome := model.Outcome{
		ResourceURL: ref.ResourceURL,
		Kind:        ref.Kind,
		Index:       ref.Index,
	}

	decl, err := ParseIntegrity(ref.Integrity)
	if !ref.HasIntegrity || errors.Is(err, ErrEmptyIntegrity) {
		outcome.Status = model.StatusMissingIntegrity
		outcome.Detail = DetailMissingIntegrity
		return outcome
	}

	if ref.ResourceURL == "" {
		outcome.Status = model.StatusMissingResourceAttribute
		outcome.Detail = DetailMissingResource
		return outcome
	}

	if err != nil {
		outcome.Status = model.StatusHashMismatch
		outcome.Detail = DetailMalformed
		outcome.Err = err
		return outcome
	}

	outcome.Algorithm = decl.Token
	outcome.Expected = decl.Expected

	if !decl.Algorithm.Supported() {
		outcome.Status = model.StatusUnsupportedAlgorithm
		outcome.Detail = fmt.Sprintf(detailUnsupportedFormat, decl.Token)
		outcome.Err = fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, decl.Token)
		return outcome
	}

	v.logger.Debug("fetching resource",
		"kind", ref.Kind.String(),
		"url", ref.FetchURL(),
	)

	body, err := v.fetcher.Fetch(ctx, ref.FetchURL())
	if err != nil {
		v.logger.Debug("resource fetch failed",
			"url", ref.FetchURL(),
			"error", err,
		)
		outcome.Status = model.StatusFetchFailed
		outcome.Detail = fmt.Sprintf(detailFetchFailedFormat, ref.FetchURL())
		outcome.Err = err
		return outcome
	}

	actual, err := Digest(body, decl.Algorithm)
	if err != nil {
		outcome.Status = model.StatusUnsupportedAlgorithm
		outcome.Detail = fmt.Sprintf(detailUnsupportedFormat, decl.Token)
		outcome.Err = err
		return outcome
	}
	outcome.Actual = actual

	if actual != decl.Expected {
		outcome.Status = model.StatusHashMismatch
		outcome.Detail = DetailHashMismatch
		outcome.Err = ErrHashMismatch
		return outcome
	}

	outcome.Status = model.StatusValid
	outcome.Detail = DetailValid
	return outcome
}

// VerifyAll verifies references one after another, in order.
// It stops once ctx is done, so the result may be shorter than refs.
func (v *Verifier) VerifyAll(ctx context.Context, refs []model.Reference) []model.Outcome {
	outcomes := make([]model.Outcome, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, v.Verify(ctx, ref))
	}
	return outcomes
}
