// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oraclevm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/oraclevm/utils/json"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
	"github.com/luxfi/oraclevm/vms/oraclevm/registry"
	"github.com/luxfi/oraclevm/vms/oraclevm/verify"
)

var errMissingOracleID = errors.New("missing oracle id")

// Service is the JSON-RPC API of the Oracle VM, served under the "oracle"
// namespace.
type Service struct {
	vm *VM
}

// EmptyReply is the reply of calls that return nothing.
type EmptyReply struct{}

// OracleIDArgs names a single oracle.
type OracleIDArgs struct {
	OracleID string `json:"oracleID"`
}

func (a *OracleIDArgs) validate() error {
	if a.OracleID == "" {
		return errMissingOracleID
	}
	return nil
}

// APIOracle is the JSON representation of a registry entry. Amounts and
// scores are string encoded.
type APIOracle struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	PublicKey         []byte               `json:"publicKey"`
	Algorithm         oracle.Algorithm     `json:"algorithm"`
	Version           string               `json:"version"`
	SupportedServices []string             `json:"supportedServices"`
	Contact           string               `json:"contact,omitempty"`
	CertificateChain  []oracle.Certificate `json:"certificateChain,omitempty"`
	Status            oracle.Status        `json:"status"`
	RegisteredAt      json.Uint64          `json:"registeredAt"`
	LastActivity      json.Uint64          `json:"lastActivity"`

	Stake       APIStake         `json:"stake"`
	Reputation  APIReputation    `json:"reputation"`
	Performance APIPerformance   `json:"performance"`
	Blacklisted *string          `json:"blacklisted,omitempty"`
	Whitelisted *string          `json:"whitelisted,omitempty"`
	Identity    *oracle.Identity `json:"identity,omitempty"`
}

type APIStake struct {
	TotalAmount   json.Uint64  `json:"totalAmount"`
	LockedAmount  json.Uint64  `json:"lockedAmount"`
	Available     json.Uint64  `json:"available"`
	PendingSlash  json.Uint64  `json:"pendingSlash"`
	SlashGraceEnd *json.Uint64 `json:"slashGraceEnd,omitempty"`
	SlashReason   string       `json:"slashReason,omitempty"`
}

type APIReputation struct {
	CurrentScore              json.Float64   `json:"currentScore"`
	MaxScore                  json.Float64   `json:"maxScore"`
	TotalResponses            json.Uint64    `json:"totalResponses"`
	AccurateResponses         json.Uint64    `json:"accurateResponses"`
	InaccurateResponses       json.Uint64    `json:"inaccurateResponses"`
	InvalidSignatureResponses json.Uint64    `json:"invalidSignatureResponses"`
	Accuracy                  json.Float64   `json:"accuracy"`
	AvgResponseTimeMs         json.Float64   `json:"avgResponseTimeMs"`
	LastUpdated               json.Uint64    `json:"lastUpdated"`
	DailyScores               []json.Float64 `json:"dailyScores,omitempty"`
}

type APIPerformance struct {
	ConsecutiveFailures uint32      `json:"consecutiveFailures"`
	Responses24h        json.Uint64 `json:"responses24h"`
	LastResponse        json.Uint64 `json:"lastResponse"`
}

func (s *Service) toAPIOracle(e *registry.Entry) APIOracle {
	out := APIOracle{
		ID:                e.ID,
		Name:              e.Name,
		Description:       e.Description,
		PublicKey:         e.PublicKey,
		Algorithm:         e.Algorithm,
		Version:           e.Version,
		SupportedServices: e.SupportedServices,
		Contact:           e.Contact,
		CertificateChain:  e.CertificateChain,
		Status:            e.Status,
		RegisteredAt:      json.Uint64(e.RegisteredAt),
		LastActivity:      json.Uint64(e.LastActivity),
		Stake: APIStake{
			TotalAmount:  json.Uint64(e.Stake.TotalAmount),
			LockedAmount: json.Uint64(e.Stake.LockedAmount),
			Available:    json.Uint64(e.Stake.Available()),
			PendingSlash: json.Uint64(e.Stake.PendingSlash),
			SlashReason:  e.Stake.SlashReason,
		},
		Reputation: APIReputation{
			CurrentScore:              json.Float64(e.Reputation.CurrentScore),
			MaxScore:                  json.Float64(e.Reputation.MaxScore),
			TotalResponses:            json.Uint64(e.Reputation.TotalResponses),
			AccurateResponses:         json.Uint64(e.Reputation.AccurateResponses),
			InaccurateResponses:       json.Uint64(e.Reputation.InaccurateResponses),
			InvalidSignatureResponses: json.Uint64(e.Reputation.InvalidSignatureResponses),
			Accuracy:                  json.Float64(e.Reputation.Accuracy()),
			AvgResponseTimeMs:         json.Float64(e.Reputation.AvgResponseTimeMs),
			LastUpdated:               json.Uint64(e.Reputation.LastUpdated),
		},
		Performance: APIPerformance{
			ConsecutiveFailures: e.Performance.ConsecutiveFailures,
			Responses24h:        json.Uint64(e.Performance.Responses24h),
			LastResponse:        json.Uint64(e.Performance.LastResponse),
		},
	}
	if end := e.Stake.SlashGraceEnd; end != nil {
		graceEnd := json.Uint64(*end)
		out.Stake.SlashGraceEnd = &graceEnd
	}
	for _, score := range e.Reputation.DailyScores {
		out.Reputation.DailyScores = append(out.Reputation.DailyScores, json.Float64(score))
	}
	if reason, ok := s.vm.registry.IsBlacklisted(e.ID); ok {
		out.Blacklisted = &reason
	}
	if note, ok := s.vm.registry.IsWhitelisted(e.ID); ok {
		out.Whitelisted = &note
	}
	return out
}

func (s *Service) toAPIOracles(entries []*registry.Entry) []APIOracle {
	out := make([]APIOracle, len(entries))
	for i, e := range entries {
		out[i] = s.toAPIOracle(e)
	}
	return out
}

// RegisterArgs are the arguments to Register.
type RegisterArgs struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	PublicKey         []byte               `json:"publicKey"`
	Algorithm         oracle.Algorithm     `json:"algorithm"`
	StakeAmount       json.Uint64          `json:"stakeAmount"`
	Version           string               `json:"version"`
	SupportedServices []string             `json:"supportedServices"`
	Contact           string               `json:"contact"`
	CertificateChain  []oracle.Certificate `json:"certificateChain"`
}

// OracleReply carries a single oracle.
type OracleReply struct {
	Oracle APIOracle `json:"oracle"`
}

// Register admits a new oracle in the pending state.
func (s *Service) Register(_ *http.Request, args *RegisterArgs, reply *OracleReply) error {
	s.vm.log.Debug("API called",
		log.String("service", "oracle"),
		log.String("method", "register"),
		log.String("oracleID", args.ID),
	)

	if err := s.vm.ready(); err != nil {
		return err
	}
	e, err := s.vm.registry.Register(registry.Registration{
		ID:                args.ID,
		Name:              args.Name,
		Description:       args.Description,
		PublicKey:         args.PublicKey,
		Algorithm:         args.Algorithm,
		StakeAmount:       uint64(args.StakeAmount),
		Version:           args.Version,
		SupportedServices: args.SupportedServices,
		Contact:           args.Contact,
		CertificateChain:  args.CertificateChain,
	})
	if err != nil {
		return err
	}
	reply.Oracle = s.toAPIOracle(e)
	return nil
}

// Activate moves a pending or suspended oracle to active.
func (s *Service) Activate(_ *http.Request, args *OracleIDArgs, _ *EmptyReply) error {
	return s.transition("activate", args, s.vm.registry.Activate)
}

// Deactivate suspends an active oracle.
func (s *Service) Deactivate(_ *http.Request, args *OracleIDArgs, _ *EmptyReply) error {
	return s.transition("deactivate", args, s.vm.registry.Deactivate)
}

// Reinstate returns a slashed oracle to pending.
func (s *Service) Reinstate(_ *http.Request, args *OracleIDArgs, _ *EmptyReply) error {
	return s.transition("reinstate", args, s.vm.registry.Reinstate)
}

func (s *Service) transition(method string, args *OracleIDArgs, apply func(string) error) error {
	s.vm.log.Debug("API called",
		log.String("service", "oracle"),
		log.String("method", method),
		log.String("oracleID", args.OracleID),
	)

	if err := args.validate(); err != nil {
		return err
	}
	if err := s.vm.ready(); err != nil {
		return err
	}
	return apply(args.OracleID)
}

// AccessArgs are the arguments to the whitelist and blacklist calls.
type AccessArgs struct {
	OracleID string `json:"oracleID"`
	// Note is the whitelist note or the blacklist reason.
	Note string `json:"note"`
}

func (s *Service) Whitelist(_ *http.Request, args *AccessArgs, _ *EmptyReply) error {
	if err := s.access("whitelist", args); err != nil {
		return err
	}
	return s.vm.registry.Whitelist(args.OracleID, args.Note)
}

func (s *Service) Blacklist(_ *http.Request, args *AccessArgs, _ *EmptyReply) error {
	if err := s.access("blacklist", args); err != nil {
		return err
	}
	return s.vm.registry.Blacklist(args.OracleID, args.Note)
}

func (s *Service) RemoveFromBlacklist(_ *http.Request, args *AccessArgs, _ *EmptyReply) error {
	if err := s.access("removeFromBlacklist", args); err != nil {
		return err
	}
	return s.vm.registry.RemoveFromBlacklist(args.OracleID)
}

func (s *Service) access(method string, args *AccessArgs) error {
	s.vm.log.Debug("API called",
		log.String("service", "oracle"),
		log.String("method", method),
		log.String("oracleID", args.OracleID),
	)

	if args.OracleID == "" {
		return errMissingOracleID
	}
	return s.vm.ready()
}

// SlashArgs are the arguments to Slash.
type SlashArgs struct {
	OracleID  string `json:"oracleID"`
	Reason    string `json:"reason"`
	Immediate bool   `json:"immediate"`
}

// Slash penalizes an oracle, immediately or after the grace period.
func (s *Service) Slash(_ *http.Request, args *SlashArgs, _ *EmptyReply) error {
	s.vm.log.Debug("API called",
		log.String("service", "oracle"),
		log.String("method", "slash"),
		log.String("oracleID", args.OracleID),
		log.Bool("immediate", args.Immediate),
	)

	if args.OracleID == "" {
		return errMissingOracleID
	}
	if err := s.vm.ready(); err != nil {
		return err
	}
	return s.vm.registry.Slash(args.OracleID, args.Reason, args.Immediate)
}

// CountReply carries the number of affected oracles.
type CountReply struct {
	Count int `json:"count"`
}

// ProcessPendingSlashing finalizes every slash whose grace period has ended.
func (s *Service) ProcessPendingSlashing(_ *http.Request, _ *struct{}, reply *CountReply) error {
	if err := s.vm.ready(); err != nil {
		return err
	}
	n, err := s.vm.registry.ProcessPendingSlashing()
	reply.Count = n
	return err
}

// DailyMaintenance runs reputation decay and the pending slash sweep.
func (s *Service) DailyMaintenance(_ *http.Request, _ *struct{}, reply *registry.MaintenanceReport) error {
	if err := s.vm.ready(); err != nil {
		return err
	}
	report, err := s.vm.registry.DailyMaintenance()
	*reply = report
	return err
}

// GetOracleArgs are the arguments to GetOracle.
type GetOracleArgs struct {
	OracleID        string `json:"oracleID"`
	IncludeIdentity bool   `json:"includeIdentity"`
}

func (s *Service) GetOracle(_ *http.Request, args *GetOracleArgs, reply *OracleReply) error {
	s.vm.log.Debug("API called",
		log.String("service", "oracle"),
		log.String("method", "getOracle"),
		log.String("oracleID", args.OracleID),
	)

	if args.OracleID == "" {
		return errMissingOracleID
	}
	if err := s.vm.ready(); err != nil {
		return err
	}
	e, err := s.vm.registry.Get(args.OracleID)
	if err != nil {
		return err
	}
	reply.Oracle = s.toAPIOracle(e)
	if args.IncludeIdentity {
		identity := e.Identity()
		reply.Oracle.Identity = &identity
	}
	return nil
}

// OraclesReply carries a list of oracles ordered by id.
type OraclesReply struct {
	Oracles []APIOracle `json:"oracles"`
}

func (s *Service) ListOracles(_ *http.Request, _ *struct{}, reply *OraclesReply) error {
	if err := s.vm.ready(); err != nil {
		return err
	}
	reply.Oracles = s.toAPIOracles(s.vm.registry.List())
	return nil
}

func (s *Service) GetActiveOracles(_ *http.Request, _ *struct{}, reply *OraclesReply) error {
	if err := s.vm.ready(); err != nil {
		return err
	}
	reply.Oracles = s.toAPIOracles(s.vm.registry.ActiveOracles())
	return nil
}

// GetOraclesByReputationArgs are the arguments to GetOraclesByReputation.
type GetOraclesByReputationArgs struct {
	MinScore json.Float64 `json:"minScore"`
}

func (s *Service) GetOraclesByReputation(_ *http.Request, args *GetOraclesByReputationArgs, reply *OraclesReply) error {
	if err := s.vm.ready(); err != nil {
		return err
	}
	reply.Oracles = s.toAPIOracles(s.vm.registry.OraclesByReputation(float64(args.MinScore)))
	return nil
}

func (s *Service) GetStatistics(_ *http.Request, _ *struct{}, reply *registry.Statistics) error {
	if err := s.vm.ready(); err != nil {
		return err
	}
	*reply = s.vm.registry.Statistics()
	return nil
}

// VerifySignedResponseArgs are the arguments to VerifySignedResponse.
type VerifySignedResponseArgs struct {
	Response    oracle.SignedResponse `json:"response"`
	RequestHash []byte                `json:"requestHash,omitempty"`
}

// VerifySignedResponseReply reports the pipeline's decision. A rejected
// response is not an RPC error.
type VerifySignedResponseReply struct {
	Valid bool `json:"valid"`
	// Digest identifies an accepted response.
	Digest ids.ID `json:"digest"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Service) VerifySignedResponse(r *http.Request, args *VerifySignedResponseArgs, reply *VerifySignedResponseReply) error {
	s.vm.log.Debug("API called",
		log.String("service", "oracle"),
		log.String("method", "verifySignedResponse"),
		log.String("oracleID", args.Response.Oracle.ID),
	)

	if err := s.vm.ready(); err != nil {
		return err
	}
	err := s.vm.VerifySignedResponse(r.Context(), &args.Response, args.RequestHash)
	if err == nil {
		reply.Valid = true
		reply.Digest, err = args.Response.Digest()
		return err
	}

	var verr *oracle.VerificationError
	if !errors.As(err, &verr) {
		return err
	}
	reply.Kind = oracle.KindOf(err).String()
	reply.Reason = verr.Reason
	return nil
}

// ReportOutcomeArgs are the arguments to ReportOutcome.
type ReportOutcomeArgs struct {
	OracleID       string      `json:"oracleID"`
	ResponseTimeMs json.Uint64 `json:"responseTimeMs"`
	Accurate       bool        `json:"accurate"`
	SignatureValid bool        `json:"signatureValid"`
}

// ReportOutcomeReply carries the oracle after the outcome was recorded.
type ReportOutcomeReply struct {
	Oracle  APIOracle `json:"oracle"`
	Slashed bool      `json:"slashed"`
}

func (s *Service) ReportOutcome(_ *http.Request, args *ReportOutcomeArgs, reply *ReportOutcomeReply) error {
	s.vm.log.Debug("API called",
		log.String("service", "oracle"),
		log.String("method", "reportOutcome"),
		log.String("oracleID", args.OracleID),
	)

	if args.OracleID == "" {
		return errMissingOracleID
	}
	e, slashed, err := s.vm.ReportOutcome(args.OracleID, registry.Outcome{
		ResponseTimeMs: uint64(args.ResponseTimeMs),
		Accurate:       args.Accurate,
		SignatureValid: args.SignatureValid,
	})
	if err != nil {
		return fmt.Errorf("couldn't report outcome: %w", err)
	}
	reply.Oracle = s.toAPIOracle(e)
	reply.Slashed = slashed
	return nil
}

func (s *Service) GetVerificationStats(_ *http.Request, _ *struct{}, reply *verify.Stats) error {
	if err := s.vm.ready(); err != nil {
		return err
	}
	*reply = s.vm.verifier.Stats()
	return nil
}

// HealthReply reports whether the VM is serving.
type HealthReply struct {
	Healthy bool        `json:"healthy"`
	Details interface{} `json:"details"`
}

func (s *Service) Health(r *http.Request, _ *struct{}, reply *HealthReply) error {
	details, err := s.vm.HealthCheck(r.Context())
	reply.Healthy = err == nil
	reply.Details = details
	return nil
}
