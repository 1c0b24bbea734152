// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle defines the data exchanged between AI oracles, the trust
// registry and the signature verification pipeline.
package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Algorithm names a post-quantum signature scheme.
type Algorithm string

const (
	MLDSA44 Algorithm = "ML-DSA-44"
	MLDSA65 Algorithm = "ML-DSA-65"
	MLDSA87 Algorithm = "ML-DSA-87"
)

// Status is the lifecycle state of a registered oracle.
type Status uint8

const (
	Pending Status = iota
	Active
	Suspended
	Slashed
)

var statusNames = map[Status]string{
	Pending:   "pending",
	Active:    "active",
	Suspended: "suspended",
	Slashed:   "slashed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", uint8(s))
	}
	return []byte(name), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Certificate binds a public key to an oracle for a bounded window.
// ValidFrom and ValidUntil are unix seconds.
type Certificate struct {
	Version    uint32    `json:"version"`
	Subject    string    `json:"subject"`
	Issuer     string    `json:"issuer"`
	ValidFrom  uint64    `json:"validFrom"`
	ValidUntil uint64    `json:"validUntil"`
	PublicKey  []byte    `json:"publicKey"`
	Algorithm  Algorithm `json:"algorithm"`
	Signature  []byte    `json:"signature"`
}

// Identity is the oracle identity embedded in every signed response.
type Identity struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	PublicKey          []byte        `json:"publicKey"`
	SignatureAlgorithm Algorithm     `json:"signatureAlgorithm"`
	RegisteredAt       uint64        `json:"registeredAt"`
	ReputationScore    float64       `json:"reputationScore"`
	IsActive           bool          `json:"isActive"`
	CertificateChain   []Certificate `json:"certificateChain"`
}

// Response is the payload an oracle produced for a request.
type Response struct {
	ID               string          `json:"id"`
	RequestID        string          `json:"requestId"`
	ServiceType      string          `json:"serviceType"`
	Data             json.RawMessage `json:"data,omitempty"`
	Timestamp        uint64          `json:"timestamp"`
	ProcessingTimeMs uint64          `json:"processingTimeMs"`
	Status           string          `json:"status"`
}

// Signature is the detached post-quantum signature over a response.
type Signature struct {
	Algorithm Algorithm `json:"algorithm"`
	Signature []byte    `json:"signature"`
	PublicKey []byte    `json:"publicKey"`
	Timestamp uint64    `json:"timestamp"`
	Version   uint32    `json:"version"`
}

// VerificationData carries optional bindings between a response and the
// request that produced it.
type VerificationData struct {
	RequestHash  []byte `json:"requestHash,omitempty"`
	ResponseHash []byte `json:"responseHash,omitempty"`
}

// SignedResponse is a response as it arrives from an oracle.
type SignedResponse struct {
	Response     Response          `json:"response"`
	Signature    Signature         `json:"signature"`
	Nonce        uint64            `json:"nonce"`
	ExpiresAt    uint64            `json:"expiresAt"`
	Oracle       Identity          `json:"oracleIdentity"`
	Verification *VerificationData `json:"verificationData,omitempty"`
}

// MatchesRequest reports whether the response is bound to requestHash.
func (s *SignedResponse) MatchesRequest(requestHash []byte) bool {
	if s.Verification == nil || len(s.Verification.RequestHash) == 0 {
		return false
	}
	return bytes.Equal(s.Verification.RequestHash, requestHash)
}
