// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package queryapi

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/bqrunner/bqjob"
)

// resultCache holds recent query results keyed by a hash of the expanded SQL,
// which embeds the time range.
type resultCache struct {
	cache *ttlcache.Cache[uint64, *bqjob.Result]
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		return &resultCache{}
	}
	c := ttlcache.New(
		ttlcache.WithTTL[uint64, *bqjob.Result](ttl),
		ttlcache.WithDisableTouchOnHit[uint64, *bqjob.Result](),
	)
	go c.Start()
	return &resultCache{cache: c}
}

func cacheKey(sql string) uint64 {
	return xxhash.Sum64String(sql)
}

func (c *resultCache) get(sql string) (*bqjob.Result, bool) {
	if c.cache == nil {
		return nil, false
	}
	item := c.cache.Get(cacheKey(sql))
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *resultCache) set(sql string, res *bqjob.Result) {
	if c.cache == nil || res == nil {
		return
	}
	c.cache.Set(cacheKey(sql), res, ttlcache.DefaultTTL)
}

func (c *resultCache) len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *resultCache) stop() {
	if c.cache != nil {
		c.cache.Stop()
	}
}
