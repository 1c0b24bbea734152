// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oraclevm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"

	apijson "github.com/luxfi/oraclevm/utils/json"
	"github.com/luxfi/oraclevm/utils/units"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
	"github.com/luxfi/oraclevm/vms/oraclevm/pqc"
	"github.com/luxfi/oraclevm/vms/oraclevm/registry"
	"github.com/luxfi/oraclevm/vms/oraclevm/verify"
)

func newTestService(t *testing.T) (*VM, *Service) {
	t.Helper()

	vm := newTestVM(t, memdb.New(), nil)
	return vm, &Service{vm: vm}
}

func testRequest() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/rpc", nil)
}

func TestServiceLifecycle(t *testing.T) {
	require := require.New(t)
	_, s := newTestService(t)

	signer, err := pqc.NewSigner(oracle.MLDSA87)
	require.NoError(err)

	reply := OracleReply{}
	require.NoError(s.Register(testRequest(), &RegisterArgs{
		ID:                "o",
		Name:              "credit oracle",
		PublicKey:         signer.PublicKey(),
		Algorithm:         oracle.MLDSA87,
		StakeAmount:       apijson.Uint64(2 * units.KiloLux),
		Version:           "1.0.0",
		SupportedServices: []string{"credit_scoring"},
	}, &reply))
	require.Equal(oracle.Pending, reply.Oracle.Status)
	require.Equal(apijson.Uint64(2*units.KiloLux), reply.Oracle.Stake.Available)

	require.NoError(s.Activate(testRequest(), &OracleIDArgs{OracleID: "o"}, &EmptyReply{}))
	require.ErrorIs(s.Activate(testRequest(), &OracleIDArgs{OracleID: "o"}, &EmptyReply{}), oracle.ErrInvalidStatus)
	require.ErrorIs(s.Activate(testRequest(), &OracleIDArgs{}, &EmptyReply{}), errMissingOracleID)

	active := OraclesReply{}
	require.NoError(s.GetActiveOracles(testRequest(), &struct{}{}, &active))
	require.Len(active.Oracles, 1)

	require.NoError(s.Slash(testRequest(), &SlashArgs{OracleID: "o", Reason: "fraud", Immediate: true}, &EmptyReply{}))

	get := OracleReply{}
	require.NoError(s.GetOracle(testRequest(), &GetOracleArgs{OracleID: "o", IncludeIdentity: true}, &get))
	require.Equal(oracle.Slashed, get.Oracle.Status)
	require.Equal(apijson.Uint64(2*units.KiloLux/10), get.Oracle.Stake.LockedAmount)
	require.Equal("fraud", get.Oracle.Stake.SlashReason)
	require.NotNil(get.Oracle.Identity)
	require.False(get.Oracle.Identity.IsActive)

	require.NoError(s.Reinstate(testRequest(), &OracleIDArgs{OracleID: "o"}, &EmptyReply{}))
	require.NoError(s.GetOracle(testRequest(), &GetOracleArgs{OracleID: "o"}, &get))
	require.Equal(oracle.Pending, get.Oracle.Status)
	require.Nil(get.Oracle.Identity)

	stats := s.vm.Registry().Statistics()
	require.Equal(1, stats.PendingOracles)
}

func TestServiceAccessLists(t *testing.T) {
	require := require.New(t)
	vm, s := newTestService(t)
	registerActive(t, vm, "o")

	require.NoError(s.Blacklist(testRequest(), &AccessArgs{OracleID: "o", Note: "spam"}, &EmptyReply{}))

	get := OracleReply{}
	require.NoError(s.GetOracle(testRequest(), &GetOracleArgs{OracleID: "o"}, &get))
	require.Equal(oracle.Suspended, get.Oracle.Status)
	require.NotNil(get.Oracle.Blacklisted)
	require.Equal("spam", *get.Oracle.Blacklisted)

	require.NoError(s.Whitelist(testRequest(), &AccessArgs{OracleID: "o", Note: "reviewed"}, &EmptyReply{}))
	require.NoError(s.RemoveFromBlacklist(testRequest(), &AccessArgs{OracleID: "o"}, &EmptyReply{}))
	require.NoError(s.GetOracle(testRequest(), &GetOracleArgs{OracleID: "o"}, &get))
	require.Nil(get.Oracle.Blacklisted)
	require.NotNil(get.Oracle.Whitelisted)
	require.Equal("reviewed", *get.Oracle.Whitelisted)

	require.ErrorIs(s.Whitelist(testRequest(), &AccessArgs{}, &EmptyReply{}), errMissingOracleID)
}

func TestServiceVerifySignedResponse(t *testing.T) {
	require := require.New(t)
	vm, s := newTestService(t)
	signer := registerActive(t, vm, "o")

	resp := signedResponse(t, vm, signer, "o", 7)
	reply := VerifySignedResponseReply{}
	require.NoError(s.VerifySignedResponse(testRequest(), &VerifySignedResponseArgs{Response: *resp}, &reply))
	require.True(reply.Valid)
	digest, err := resp.Digest()
	require.NoError(err)
	require.Equal(digest, reply.Digest)

	reply = VerifySignedResponseReply{}
	require.NoError(s.VerifySignedResponse(testRequest(), &VerifySignedResponseArgs{Response: *resp}, &reply))
	require.False(reply.Valid)
	require.Equal(oracle.KindReplayAttack.String(), reply.Kind)
	require.NotEmpty(reply.Reason)

	stats := verify.Stats{}
	require.NoError(s.GetVerificationStats(testRequest(), &struct{}{}, &stats))
	require.Equal(uint64(2), stats.Verified)
	require.Equal(uint64(1), stats.Rejected[oracle.KindReplayAttack.String()])
}

func TestServiceReportOutcome(t *testing.T) {
	require := require.New(t)
	vm, s := newTestService(t)
	registerActive(t, vm, "o")

	reply := ReportOutcomeReply{}
	require.NoError(s.ReportOutcome(testRequest(), &ReportOutcomeArgs{
		OracleID:       "o",
		ResponseTimeMs: 10_000,
		Accurate:       true,
		SignatureValid: true,
	}, &reply))
	require.False(reply.Slashed)
	require.Equal(apijson.Uint64(1), reply.Oracle.Reputation.TotalResponses)
	require.Less(float64(reply.Oracle.Reputation.CurrentScore), 1.0)

	err := s.ReportOutcome(testRequest(), &ReportOutcomeArgs{OracleID: "missing"}, &reply)
	require.ErrorIs(err, oracle.ErrNotFound)
}

func TestServiceMaintenance(t *testing.T) {
	require := require.New(t)
	vm, s := newTestService(t)
	registerActive(t, vm, "o")

	report := registry.MaintenanceReport{}
	require.NoError(s.DailyMaintenance(testRequest(), &struct{}{}, &report))
	require.Equal(1, report.Decayed)

	count := CountReply{}
	require.NoError(s.ProcessPendingSlashing(testRequest(), &struct{}{}, &count))
	require.Zero(count.Count)

	byScore := OraclesReply{}
	require.NoError(s.GetOraclesByReputation(testRequest(), &GetOraclesByReputationArgs{MinScore: 0.995}, &byScore))
	require.Empty(byScore.Oracles)
	require.NoError(s.GetOraclesByReputation(testRequest(), &GetOraclesByReputationArgs{MinScore: 0.9}, &byScore))
	require.Len(byScore.Oracles, 1)
}

func TestServiceOverJSONRPC(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestService(t)
	registerActive(t, vm, "o")

	handlers, err := vm.CreateHandlers(context.Background())
	require.NoError(err)
	server := httptest.NewServer(handlers["/rpc"])
	defer server.Close()

	call := func(method string, params interface{}, result interface{}) map[string]json.RawMessage {
		body, err := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  method,
			"params":  params,
			"id":      1,
		})
		require.NoError(err)

		res, err := http.Post(server.URL, "application/json", bytes.NewReader(body))
		require.NoError(err)
		defer res.Body.Close()

		var envelope map[string]json.RawMessage
		require.NoError(json.NewDecoder(res.Body).Decode(&envelope))
		if raw, ok := envelope["result"]; ok && result != nil {
			require.NoError(json.Unmarshal(raw, result))
		}
		return envelope
	}

	var get struct {
		Oracle struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			Reputation struct {
				CurrentScore string `json:"currentScore"`
			} `json:"reputation"`
			Stake struct {
				TotalAmount string `json:"totalAmount"`
			} `json:"stake"`
		} `json:"oracle"`
	}
	call("oracle.GetOracle", map[string]string{"oracleID": "o"}, &get)
	require.Equal("o", get.Oracle.ID)
	require.Equal("active", get.Oracle.Status)
	require.Equal("1.0000", get.Oracle.Reputation.CurrentScore)
	require.Equal("1000000000", get.Oracle.Stake.TotalAmount)

	envelope := call("oracle.GetOracle", map[string]string{"oracleID": "missing"}, nil)
	require.Contains(envelope, "error")

	var health HealthReply
	call("oracle.Health", struct{}{}, &health)
	require.True(health.Healthy)
}
