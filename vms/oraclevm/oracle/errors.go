// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"errors"
	"fmt"
)

// Verification failures.
var (
	ErrOracleNotFound              = errors.New("oracle not found")
	ErrOracleNotTrusted            = errors.New("oracle not trusted")
	ErrReplayAttack                = errors.New("replay attack detected")
	ErrResponseExpired             = errors.New("response expired")
	ErrTimestamp                   = errors.New("timestamp out of range")
	ErrCertificate                 = errors.New("certificate validation failed")
	ErrRequestResponseMismatch     = errors.New("request/response mismatch")
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	ErrNonceCacheFull              = errors.New("nonce cache full")
)

// Registry failures.
var (
	ErrInsufficientStake   = errors.New("insufficient stake")
	ErrAlreadyRegistered   = errors.New("oracle already registered")
	ErrBlacklisted         = errors.New("oracle is blacklisted")
	ErrNotWhitelisted      = errors.New("oracle is not whitelisted")
	ErrCapacityExceeded    = errors.New("oracle capacity exceeded")
	ErrNotFound            = errors.New("oracle not registered")
	ErrInvalidStatus       = errors.New("invalid status transition")
	ErrUnsupportedVersion  = errors.New("unsupported oracle version")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrUnsupportedAlgo     = errors.New("unsupported signature algorithm")
)

// ErrorKind is the closed set of failures reported by the registry and the
// verification pipeline.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindOracleNotFound
	KindOracleNotTrusted
	KindReplayAttack
	KindResponseExpired
	KindTimestamp
	KindCertificate
	KindRequestResponseMismatch
	KindSignatureVerificationFailed
	KindNonceCacheFull
	KindInsufficientStake
	KindAlreadyRegistered
	KindBlacklisted
	KindNotWhitelisted
	KindCapacityExceeded
	KindNotFound
	KindInvalidStatus
	KindUnsupportedVersion
	KindInvalidRegistration
	KindUnsupportedAlgorithm

	numKinds
)

var kindErrors = [numKinds]error{
	KindOracleNotFound:              ErrOracleNotFound,
	KindOracleNotTrusted:            ErrOracleNotTrusted,
	KindReplayAttack:                ErrReplayAttack,
	KindResponseExpired:             ErrResponseExpired,
	KindTimestamp:                   ErrTimestamp,
	KindCertificate:                 ErrCertificate,
	KindRequestResponseMismatch:     ErrRequestResponseMismatch,
	KindSignatureVerificationFailed: ErrSignatureVerificationFailed,
	KindNonceCacheFull:              ErrNonceCacheFull,
	KindInsufficientStake:           ErrInsufficientStake,
	KindAlreadyRegistered:           ErrAlreadyRegistered,
	KindBlacklisted:                 ErrBlacklisted,
	KindNotWhitelisted:              ErrNotWhitelisted,
	KindCapacityExceeded:            ErrCapacityExceeded,
	KindNotFound:                    ErrNotFound,
	KindInvalidStatus:               ErrInvalidStatus,
	KindUnsupportedVersion:          ErrUnsupportedVersion,
	KindInvalidRegistration:         ErrInvalidRegistration,
	KindUnsupportedAlgorithm:        ErrUnsupportedAlgo,
}

var kindNames = [numKinds]string{
	KindUnknown:                     "unknown",
	KindOracleNotFound:              "oracle_not_found",
	KindOracleNotTrusted:            "oracle_not_trusted",
	KindReplayAttack:                "replay_attack",
	KindResponseExpired:             "response_expired",
	KindTimestamp:                   "timestamp",
	KindCertificate:                 "certificate",
	KindRequestResponseMismatch:     "request_response_mismatch",
	KindSignatureVerificationFailed: "signature_verification_failed",
	KindNonceCacheFull:              "nonce_cache_full",
	KindInsufficientStake:           "insufficient_stake",
	KindAlreadyRegistered:           "already_registered",
	KindBlacklisted:                 "blacklisted",
	KindNotWhitelisted:              "not_whitelisted",
	KindCapacityExceeded:            "capacity_exceeded",
	KindNotFound:                    "not_found",
	KindInvalidStatus:               "invalid_status",
	KindUnsupportedVersion:          "unsupported_version",
	KindInvalidRegistration:         "invalid_registration",
	KindUnsupportedAlgorithm:        "unsupported_algorithm",
}

func (k ErrorKind) String() string {
	if k >= numKinds {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Err returns the sentinel error of k, or nil for KindUnknown.
func (k ErrorKind) Err() error {
	if k >= numKinds {
		return nil
	}
	return kindErrors[k]
}

// Kinds returns every known kind, KindUnknown excluded.
func Kinds() []ErrorKind {
	kinds := make([]ErrorKind, 0, numKinds-1)
	for k := KindUnknown + 1; k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// KindOf classifies err. Errors that wrap none of the sentinels are
// KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range Kinds() {
		if errors.Is(err, k.Err()) {
			return k
		}
	}
	return KindUnknown
}

// VerificationError is returned by the verification pipeline. It unwraps to
// one of the sentinel errors above.
type VerificationError struct {
	Kind       error
	OracleID   string
	ResponseID string
	Reason     string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: oracle=%q response=%q: %s", e.Kind, e.OracleID, e.ResponseID, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.Kind
}
