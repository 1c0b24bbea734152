// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"errors"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
)

const CodecVersion = 0

// Codec produces the canonical byte encoding that oracles sign.
var Codec codec.Manager

func init() {
	Codec = codec.NewManager(math.MaxInt)
	lc := linearcodec.NewDefault()

	err := errors.Join(
		lc.RegisterType(&signedPayload{}),
		Codec.RegisterCodec(CodecVersion, lc),
	)
	if err != nil {
		panic(err)
	}
}

// signedPayload is every field covered by an oracle signature. The
// identity's reputation and activity flags are excluded since they are
// asserted by the registry, not by the oracle.
type signedPayload struct {
	ResponseID       string `serialize:"true"`
	RequestID        string `serialize:"true"`
	ServiceType      string `serialize:"true"`
	Data             []byte `serialize:"true"`
	Timestamp        uint64 `serialize:"true"`
	ProcessingTimeMs uint64 `serialize:"true"`
	Status           string `serialize:"true"`
	SignedAt         uint64 `serialize:"true"`
	Nonce            uint64 `serialize:"true"`
	ExpiresAt        uint64 `serialize:"true"`
	OracleID         string `serialize:"true"`
	RequestHash      []byte `serialize:"true"`
}

// SignableBytes returns the message an oracle signs for s.
func (s *SignedResponse) SignableBytes() ([]byte, error) {
	payload := signedPayload{
		ResponseID:       s.Response.ID,
		RequestID:        s.Response.RequestID,
		ServiceType:      s.Response.ServiceType,
		Data:             []byte(s.Response.Data),
		Timestamp:        s.Response.Timestamp,
		ProcessingTimeMs: s.Response.ProcessingTimeMs,
		Status:           s.Response.Status,
		SignedAt:         s.Signature.Timestamp,
		Nonce:            s.Nonce,
		ExpiresAt:        s.ExpiresAt,
		OracleID:         s.Oracle.ID,
	}
	if s.Verification != nil {
		payload.RequestHash = s.Verification.RequestHash
	}
	return Codec.Marshal(CodecVersion, &payload)
}

// Digest identifies s by the hash of its signable bytes.
func (s *SignedResponse) Digest() (ids.ID, error) {
	b, err := s.SignableBytes()
	if err != nil {
		return ids.Empty, err
	}
	return hash.ComputeHash256Array(b), nil
}
