// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"slices"

	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// Registration is the request to admit a new oracle.
type Registration struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	PublicKey         []byte               `json:"publicKey"`
	Algorithm         oracle.Algorithm     `json:"algorithm"`
	StakeAmount       uint64               `json:"stakeAmount"`
	Version           string               `json:"version"`
	SupportedServices []string             `json:"supportedServices"`
	Contact           string               `json:"contact,omitempty"`
	CertificateChain  []oracle.Certificate `json:"certificateChain,omitempty"`
}

// Stake is accounted in MicroLux. LockedAmount never exceeds TotalAmount.
type Stake struct {
	TotalAmount  uint64 `json:"totalAmount"`
	LockedAmount uint64 `json:"lockedAmount"`
	PendingSlash uint64 `json:"pendingSlash"`
	// SlashGraceEnd is set while a slash awaits finalization.
	SlashGraceEnd *uint64 `json:"slashGraceEnd,omitempty"`
	SlashReason   string  `json:"slashReason,omitempty"`
}

// Available is the stake that is not locked by a finalized slash.
func (s Stake) Available() uint64 {
	return s.TotalAmount - s.LockedAmount
}

// Reputation tracks how an oracle's reports have fared.
type Reputation struct {
	CurrentScore              float64   `json:"currentScore"`
	MaxScore                  float64   `json:"maxScore"`
	TotalResponses            uint64    `json:"totalResponses"`
	AccurateResponses         uint64    `json:"accurateResponses"`
	InaccurateResponses       uint64    `json:"inaccurateResponses"`
	InvalidSignatureResponses uint64    `json:"invalidSignatureResponses"`
	AvgResponseTimeMs         float64   `json:"avgResponseTimeMs"`
	LastUpdated               uint64    `json:"lastUpdated"`
	DailyScores               []float64 `json:"dailyScores,omitempty"`
}

// Accuracy is the fraction of accurate responses, or 0 before the first.
func (r Reputation) Accuracy() float64 {
	if r.TotalResponses == 0 {
		return 0
	}
	return float64(r.AccurateResponses) / float64(r.TotalResponses)
}

// InvalidSignatureRate is the fraction of responses with invalid signatures.
func (r Reputation) InvalidSignatureRate() float64 {
	if r.TotalResponses == 0 {
		return 0
	}
	return float64(r.InvalidSignatureResponses) / float64(r.TotalResponses)
}

type Performance struct {
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
	Responses24h        uint64 `json:"responses24h"`
	LastResponse        uint64 `json:"lastResponse"`
}

// Entry is the registry's record of an oracle. Entries are never deleted.
type Entry struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	PublicKey         []byte               `json:"publicKey"`
	Algorithm         oracle.Algorithm     `json:"algorithm"`
	Version           string               `json:"version"`
	SupportedServices []string             `json:"supportedServices"`
	Contact           string               `json:"contact,omitempty"`
	CertificateChain  []oracle.Certificate `json:"certificateChain,omitempty"`

	Status       oracle.Status `json:"status"`
	RegisteredAt uint64        `json:"registeredAt"`
	LastActivity uint64        `json:"lastActivity"`

	Stake       Stake       `json:"stake"`
	Reputation  Reputation  `json:"reputation"`
	Performance Performance `json:"performance"`
}

// Identity returns the oracle identity view of e.
func (e *Entry) Identity() oracle.Identity {
	return oracle.Identity{
		ID:                 e.ID,
		Name:               e.Name,
		PublicKey:          slices.Clone(e.PublicKey),
		SignatureAlgorithm: e.Algorithm,
		RegisteredAt:       e.RegisteredAt,
		ReputationScore:    e.Reputation.CurrentScore,
		IsActive:           e.Status == oracle.Active,
		CertificateChain:   cloneCertificates(e.CertificateChain),
	}
}

func (e *Entry) clone() *Entry {
	c := *e
	c.PublicKey = slices.Clone(e.PublicKey)
	c.SupportedServices = slices.Clone(e.SupportedServices)
	c.CertificateChain = cloneCertificates(e.CertificateChain)
	c.Reputation.DailyScores = slices.Clone(e.Reputation.DailyScores)
	if e.Stake.SlashGraceEnd != nil {
		end := *e.Stake.SlashGraceEnd
		c.Stake.SlashGraceEnd = &end
	}
	return &c
}

func cloneCertificates(certs []oracle.Certificate) []oracle.Certificate {
	if certs == nil {
		return nil
	}
	out := make([]oracle.Certificate, len(certs))
	for i, cert := range certs {
		cert.PublicKey = slices.Clone(cert.PublicKey)
		cert.Signature = slices.Clone(cert.Signature)
		out[i] = cert
	}
	return out
}

// TrustView is the subset of an entry the verification pipeline needs to
// decide whether to trust a response.
type TrustView struct {
	ID        string
	Status    oracle.Status
	Score     float64
	PublicKey []byte
	Algorithm oracle.Algorithm
	// Barred is set when the oracle is blacklisted and not whitelisted.
	Barred bool
}

// Statistics summarizes the registry.
type Statistics struct {
	TotalOracles      int     `json:"totalOracles"`
	PendingOracles    int     `json:"pendingOracles"`
	ActiveOracles     int     `json:"activeOracles"`
	SuspendedOracles  int     `json:"suspendedOracles"`
	SlashedOracles    int     `json:"slashedOracles"`
	Blacklisted       int     `json:"blacklisted"`
	Whitelisted       int     `json:"whitelisted"`
	TotalStake        uint64  `json:"totalStake"`
	TotalLocked       uint64  `json:"totalLocked"`
	TotalPendingSlash uint64  `json:"totalPendingSlash"`
	AverageReputation float64 `json:"averageReputation"`
	TotalResponses    uint64  `json:"totalResponses"`
	OverallAccuracy   float64 `json:"overallAccuracy"`
}

// MaintenanceReport describes the effect of one maintenance run.
type MaintenanceReport struct {
	Decayed   int `json:"decayed"`
	Finalized int `json:"finalized"`
}
