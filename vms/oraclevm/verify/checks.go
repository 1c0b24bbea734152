// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"fmt"

	"github.com/luxfi/oraclevm/vms/oraclevm/config"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// checkFreshness rejects expired responses and timestamps that are too old
// or too far in the future. A timestamp may lead now by at most the skew
// tolerance and trail it by at most maxAge plus the tolerance.
func checkFreshness(cfg config.VerificationConfig, resp *oracle.SignedResponse, now uint64) error {
	if now >= resp.ExpiresAt {
		return fail(oracle.ErrResponseExpired, resp, "expired at %d, now %d", resp.ExpiresAt, now)
	}
	if err := checkAge(cfg, "signature", resp.Signature.Timestamp, cfg.MaxSignatureAge, now); err != nil {
		return fail(oracle.ErrTimestamp, resp, "%s", err)
	}
	if err := checkAge(cfg, "response", resp.Response.Timestamp, cfg.MaxResponseAge, now); err != nil {
		return fail(oracle.ErrTimestamp, resp, "%s", err)
	}
	return nil
}

func checkAge(cfg config.VerificationConfig, what string, ts, maxAge, now uint64) error {
	skew := cfg.ClockSkewTolerance
	if ts > now {
		if ts-now > skew {
			return fmt.Errorf("%s timestamp %d is %ds in the future", what, ts, ts-now)
		}
		return nil
	}
	if age := now - ts; age > maxAge+skew {
		return fmt.Errorf("%s is %ds old, limit %ds", what, age, maxAge+skew)
	}
	return nil
}

// checkCertificates requires a non-empty chain in which every certificate is
// issued to the responding oracle and valid at now.
func checkCertificates(resp *oracle.SignedResponse, now uint64) error {
	chain := resp.Oracle.CertificateChain
	if len(chain) == 0 {
		return fail(oracle.ErrCertificate, resp, "empty certificate chain")
	}
	for i, cert := range chain {
		if cert.Subject != resp.Oracle.ID {
			return fail(oracle.ErrCertificate, resp, "certificate %d issued to %q", i, cert.Subject)
		}
		if now < cert.ValidFrom {
			return fail(oracle.ErrCertificate, resp, "certificate %d not valid before %d", i, cert.ValidFrom)
		}
		if now > cert.ValidUntil {
			return fail(oracle.ErrCertificate, resp, "certificate %d expired at %d", i, cert.ValidUntil)
		}
	}
	return nil
}

func fail(kind error, resp *oracle.SignedResponse, format string, args ...any) *oracle.VerificationError {
	return &oracle.VerificationError{
		Kind:       kind,
		OracleID:   resp.Oracle.ID,
		ResponseID: resp.Response.ID,
		Reason:     fmt.Sprintf(format, args...),
	}
}
