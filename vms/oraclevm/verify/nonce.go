// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"errors"
	"time"

	"github.com/luxfi/oraclevm/utils/ttlmap"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// nonceCache remembers nonces for a sliding window. Nonces are global: two
// oracles may not use the same nonce within one window.
type nonceCache struct {
	seen *ttlmap.Map[uint64, string]
}

func newNonceCache(ttl time.Duration, size int) *nonceCache {
	return &nonceCache{
		seen: ttlmap.New[uint64, string](ttl, size),
	}
}

// check records the nonce of resp, rejecting it if it is still live.
func (c *nonceCache) check(now time.Time, resp *oracle.SignedResponse) error {
	entry, inserted, err := c.seen.PutIfAbsent(now, resp.Nonce, resp.Oracle.ID)
	switch {
	case errors.Is(err, ttlmap.ErrFull):
		return fail(oracle.ErrNonceCacheFull, resp, "%d live nonces", c.seen.Len())
	case err != nil:
		return err
	case !inserted:
		return fail(oracle.ErrReplayAttack, resp, "nonce %d first seen from %q at %d, within %s",
			resp.Nonce, entry.Value, entry.InsertedAt.Unix(), c.seen.TTL())
	default:
		return nil
	}
}

func (c *nonceCache) prune(now time.Time) int {
	return c.seen.Prune(now)
}

func (c *nonceCache) len() int {
	return c.seen.Len()
}
