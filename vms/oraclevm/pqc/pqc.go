// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pqc adapts post-quantum signature schemes to the capability the
// verification pipeline consumes.
package pqc

import (
	"crypto/rand"
	"fmt"

	"github.com/luxfi/cache/lru"
	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/crypto/mldsa"
	"github.com/luxfi/ids"

	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

//go:generate mockgen -package=pqcmock -destination=pqcmock/verifier.go -mock_names=Verifier=Verifier . Verifier

// Signature is a detached signature and the scheme that produced it.
type Signature struct {
	Data      []byte
	Algorithm oracle.Algorithm
}

// Verifier checks a signature over message against publicKey. A false
// result with a nil error means the signature is well formed but invalid.
type Verifier interface {
	Verify(message []byte, sig Signature, publicKey []byte) (bool, error)
}

// Mode maps an algorithm name to its ML-DSA parameter set.
func Mode(alg oracle.Algorithm) (mldsa.Mode, error) {
	switch alg {
	case oracle.MLDSA44:
		return mldsa.MLDSA44, nil
	case oracle.MLDSA65:
		return mldsa.MLDSA65, nil
	case oracle.MLDSA87:
		return mldsa.MLDSA87, nil
	default:
		var mode mldsa.Mode
		return mode, fmt.Errorf("%w: %q", oracle.ErrUnsupportedAlgo, alg)
	}
}

var _ Verifier = (*MLDSA)(nil)

// MLDSA verifies ML-DSA signatures. Decoded public keys are cached by the
// hash of their algorithm and encoding.
type MLDSA struct {
	keys *lru.Cache[ids.ID, *mldsa.PublicKey]
}

// NewMLDSA returns a verifier caching up to cacheSize decoded keys.
func NewMLDSA(cacheSize int) *MLDSA {
	return &MLDSA{
		keys: lru.NewCache[ids.ID, *mldsa.PublicKey](cacheSize),
	}
}

func (v *MLDSA) Verify(message []byte, sig Signature, publicKey []byte) (bool, error) {
	mode, err := Mode(sig.Algorithm)
	if err != nil {
		return false, err
	}
	if len(sig.Data) == 0 {
		return false, nil
	}

	pub, err := v.publicKey(mode, sig.Algorithm, publicKey)
	if err != nil {
		return false, err
	}
	return pub.VerifySignature(message, sig.Data), nil
}

func (v *MLDSA) publicKey(mode mldsa.Mode, alg oracle.Algorithm, publicKey []byte) (*mldsa.PublicKey, error) {
	keyBytes := make([]byte, 0, len(alg)+len(publicKey))
	keyBytes = append(keyBytes, alg...)
	keyBytes = append(keyBytes, publicKey...)
	keyID := ids.ID(hash.ComputeHash256Array(keyBytes))

	if pub, ok := v.keys.Get(keyID); ok {
		return pub, nil
	}
	pub, err := mldsa.PublicKeyFromBytes(publicKey, mode)
	if err != nil {
		return nil, fmt.Errorf("invalid %s public key: %w", alg, err)
	}
	v.keys.Put(keyID, pub)
	return pub, nil
}

// Signer produces ML-DSA signatures. Oracle operators and tests use it to
// sign responses.
type Signer struct {
	algorithm oracle.Algorithm
	key       *mldsa.PrivateKey
}

// NewSigner generates a fresh key pair for alg.
func NewSigner(alg oracle.Algorithm) (*Signer, error) {
	mode, err := Mode(alg)
	if err != nil {
		return nil, err
	}
	key, err := mldsa.GenerateKey(rand.Reader, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", alg, err)
	}
	return &Signer{
		algorithm: alg,
		key:       key,
	}, nil
}

// SignerFromBytes restores a signer from an encoded private key.
func SignerFromBytes(alg oracle.Algorithm, privateKey []byte) (*Signer, error) {
	mode, err := Mode(alg)
	if err != nil {
		return nil, err
	}
	key, err := mldsa.PrivateKeyFromBytes(mode, privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid %s private key: %w", alg, err)
	}
	return &Signer{
		algorithm: alg,
		key:       key,
	}, nil
}

func (s *Signer) Algorithm() oracle.Algorithm {
	return s.algorithm
}

func (s *Signer) PublicKey() []byte {
	return s.key.PublicKey.Bytes()
}

func (s *Signer) PrivateKey() []byte {
	return s.key.Bytes()
}

func (s *Signer) Sign(message []byte) ([]byte, error) {
	return s.key.Sign(rand.Reader, message, nil)
}

// SignResponse fills in the signature of resp with this signer's key.
func (s *Signer) SignResponse(resp *oracle.SignedResponse) error {
	resp.Signature.Algorithm = s.algorithm
	resp.Signature.PublicKey = s.PublicKey()
	msg, err := resp.SignableBytes()
	if err != nil {
		return err
	}
	sig, err := s.Sign(msg)
	if err != nil {
		return fmt.Errorf("failed to sign response: %w", err)
	}
	resp.Signature.Signature = sig
	return nil
}
