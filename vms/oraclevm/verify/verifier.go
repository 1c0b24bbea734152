// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verify decides whether a signed oracle response may be trusted.
//
// Checks run in a fixed order and the first failure is returned: freshness,
// the registry trust gate, nonce replay, the certificate chain, request
// binding and finally the post-quantum signature. Only the outcome of the
// signature stage is reported back to the registry.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/oraclevm/vms/oraclevm/config"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
	"github.com/luxfi/oraclevm/vms/oraclevm/pqc"
	"github.com/luxfi/oraclevm/vms/oraclevm/registry"
)

// Registry is the view of the trust registry the verifier depends on.
type Registry interface {
	TrustView(oracleID string) (registry.TrustView, error)
	UpdateReputation(oracleID string, responseTimeMs uint64, accurate, signatureValid bool) error
}

// Clock reports the current time.
type Clock interface {
	Time() time.Time
}

// Request is one entry of a batch verification.
type Request struct {
	Response    *oracle.SignedResponse
	RequestHash []byte
}

// Stats summarizes the verifier's history.
type Stats struct {
	NonceCacheSize int               `json:"nonceCacheSize"`
	Verified       uint64            `json:"verified"`
	Accepted       uint64            `json:"accepted"`
	Rejected       map[string]uint64 `json:"rejected"`
	SuccessRate    float64           `json:"successRate"`
}

// Verifier is safe for concurrent use. No lock is held while a signature is
// checked.
type Verifier struct {
	log      log.Logger
	cfg      config.VerificationConfig
	clock    Clock
	registry Registry
	pqc      pqc.Verifier
	nonces   *nonceCache
	metrics  *metrics

	// maxParallel bounds VerifyBatch concurrency.
	maxParallel int
}

// New returns a verifier. cfg is copied and fixed for the verifier's
// lifetime.
func New(
	logger log.Logger,
	cfg config.VerificationConfig,
	clock Clock,
	reg Registry,
	verifier pqc.Verifier,
	registerer metric.Registerer,
) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register verifier metrics: %w", err)
	}
	return &Verifier{
		log:         logger,
		cfg:         cfg,
		clock:       clock,
		registry:    reg,
		pqc:         verifier,
		nonces:      newNonceCache(time.Duration(cfg.NonceCacheTTL)*time.Second, cfg.MaxNonceCacheSize),
		metrics:     m,
		maxParallel: 16,
	}, nil
}

// Verify checks resp. requestHash is only consulted when request binding is
// enforced; nil skips the binding check.
func (v *Verifier) Verify(ctx context.Context, resp *oracle.SignedResponse, requestHash []byte) error {
	err := v.verify(ctx, resp, requestHash)
	v.metrics.observe(err, v.nonces.len())
	if err != nil {
		v.log.Warn("rejected oracle response",
			log.String("oracleID", resp.Oracle.ID),
			log.String("responseID", resp.Response.ID),
			log.Stringer("kind", oracle.KindOf(err)),
			log.Err(err),
		)
		return err
	}
	v.log.Debug("accepted oracle response",
		log.String("oracleID", resp.Oracle.ID),
		log.String("responseID", resp.Response.ID),
		log.Uint64("nonce", resp.Nonce),
	)
	return nil
}

func (v *Verifier) verify(ctx context.Context, resp *oracle.SignedResponse, requestHash []byte) error {
	now := v.clock.Time()
	unix := uint64(max(now.Unix(), 0))

	if err := checkFreshness(v.cfg, resp, unix); err != nil {
		return err
	}

	view, err := v.registry.TrustView(resp.Oracle.ID)
	switch {
	case errors.Is(err, oracle.ErrNotFound):
		return fail(oracle.ErrOracleNotFound, resp, "not registered")
	case err != nil:
		return err
	case view.Barred:
		return fail(oracle.ErrOracleNotTrusted, resp, "blacklisted")
	case view.Status != oracle.Active:
		return fail(oracle.ErrOracleNotTrusted, resp, "status is %s", view.Status)
	case view.Score < v.cfg.MinOracleReputation:
		return fail(oracle.ErrOracleNotTrusted, resp, "reputation %.3f below %.3f", view.Score, v.cfg.MinOracleReputation)
	}

	if err := v.nonces.check(now, resp); err != nil {
		return err
	}

	if v.cfg.EnforceCertificateValidation {
		if err := checkCertificates(resp, unix); err != nil {
			return err
		}
	}

	if v.cfg.EnforceRequestBinding && requestHash != nil && !resp.MatchesRequest(requestHash) {
		return fail(oracle.ErrRequestResponseMismatch, resp, "request hash does not match")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := v.verifySignature(resp, view); err != nil {
		v.feedback(resp, false)
		return err
	}
	v.feedback(resp, true)
	return nil
}

func (v *Verifier) verifySignature(resp *oracle.SignedResponse, view registry.TrustView) error {
	sig := resp.Signature
	if sig.Algorithm != view.Algorithm {
		return fail(oracle.ErrSignatureVerificationFailed, resp,
			"algorithm %q, registered %q", sig.Algorithm, view.Algorithm)
	}
	if len(sig.PublicKey) != 0 && !bytes.Equal(sig.PublicKey, view.PublicKey) {
		return fail(oracle.ErrSignatureVerificationFailed, resp, "public key differs from registered key")
	}

	msg, err := resp.SignableBytes()
	if err != nil {
		return fail(oracle.ErrSignatureVerificationFailed, resp, "failed to encode response: %s", err)
	}
	valid, err := v.pqc.Verify(msg, pqc.Signature{Data: sig.Signature, Algorithm: sig.Algorithm}, view.PublicKey)
	switch {
	case err != nil:
		return fail(oracle.ErrSignatureVerificationFailed, resp, "%s", err)
	case !valid:
		return fail(oracle.ErrSignatureVerificationFailed, resp, "invalid signature")
	default:
		return nil
	}
}

// feedback reports a signature-stage outcome to the registry. A failure to
// record it does not change the verification result.
func (v *Verifier) feedback(resp *oracle.SignedResponse, valid bool) {
	err := v.registry.UpdateReputation(resp.Oracle.ID, resp.Response.ProcessingTimeMs, valid, valid)
	if err != nil {
		v.log.Error("failed to update oracle reputation",
			log.String("oracleID", resp.Oracle.ID),
			log.Bool("signatureValid", valid),
			log.Err(err),
		)
	}
}

// VerifyBatch verifies reqs concurrently. The result at index i is the
// outcome of reqs[i].
func (v *Verifier) VerifyBatch(ctx context.Context, reqs []Request) []error {
	results := make([]error, len(reqs))

	var eg errgroup.Group
	eg.SetLimit(v.maxParallel)
	for i, req := range reqs {
		eg.Go(func() error {
			results[i] = v.Verify(ctx, req.Response, req.RequestHash)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// PruneNonces forgets every nonce whose window has passed and returns how
// many were removed.
func (v *Verifier) PruneNonces() int {
	removed := v.nonces.prune(v.clock.Time())
	v.metrics.nonceSize.Set(float64(v.nonces.len()))
	if removed > 0 {
		v.log.Debug("pruned nonces",
			log.Int("removed", removed),
			log.Int("remaining", v.nonces.len()),
		)
	}
	return removed
}

func (v *Verifier) Stats() Stats {
	stats := Stats{
		NonceCacheSize: v.nonces.len(),
		Verified:       v.metrics.totalVerified.Load(),
		Accepted:       v.metrics.totalAccepted.Load(),
		Rejected:       make(map[string]uint64),
	}
	for kind, count := range v.metrics.totalRejected {
		if n := count.Load(); n > 0 {
			stats.Rejected[kind.String()] = n
		}
	}
	if stats.Verified > 0 {
		stats.SuccessRate = float64(stats.Accepted) / float64(stats.Verified)
	}
	return stats
}
