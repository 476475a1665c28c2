// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mpool accounts the memory held by query operators.
// Go memory is still managed by the runtime; an MPool only tracks how many
// bytes an operator claims to hold and refuses claims beyond its cap.
package mpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	v2 "github.com/matrixorigin/mojoin/pkg/util/metric/v2"
)

const (
	// NoLimit disables the cap check.
	NoLimit int64 = 0
)

type MPoolStats struct {
	NumAlloc      atomic.Int64
	NumFree       atomic.Int64
	NumCurrBytes  atomic.Int64
	HighWaterMark atomic.Int64
}

func (s *MPoolStats) Report(tab string) string {
	if s.HighWaterMark.Load() == 0 {
		return ""
	}
	return fmt.Sprintf("%s allocations : %d\n%s frees : %d\n%s current : %s\n%s high water : %s\n",
		tab, s.NumAlloc.Load(),
		tab, s.NumFree.Load(),
		tab, humanize.IBytes(uint64(s.NumCurrBytes.Load())),
		tab, humanize.IBytes(uint64(s.HighWaterMark.Load())))
}

func (s *MPoolStats) recordAlloc(sz int64) int64 {
	s.NumAlloc.Add(1)
	curr := s.NumCurrBytes.Add(sz)
	for {
		hwm := s.HighWaterMark.Load()
		if curr <= hwm || s.HighWaterMark.CompareAndSwap(hwm, curr) {
			break
		}
	}
	return curr
}

func (s *MPoolStats) recordFree(sz int64) int64 {
	s.NumFree.Add(1)
	return s.NumCurrBytes.Add(-sz)
}

// MPool tracks reserved bytes against an optional cap.
type MPool struct {
	name  string
	cap   int64
	stats MPoolStats
}

var globalPools sync.Map

func NewMPool(name string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidInputNoCtx("mpool %s cap %d", name, cap)
	}
	m := &MPool{name: name, cap: cap}
	globalPools.Store(m, struct{}{})
	return m, nil
}

// MustNewZero returns an unlimited pool, mostly used by tests.
func MustNewZero() *MPool {
	m, err := NewMPool("zero", NoLimit)
	if err != nil {
		panic(err)
	}
	return m
}

func MustNew(name string, cap int64) *MPool {
	m, err := NewMPool(name, cap)
	if err != nil {
		panic(err)
	}
	return m
}

func DeleteMPool(m *MPool) {
	if m != nil {
		globalPools.Delete(m)
	}
}

func (mp *MPool) Name() string {
	return mp.name
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

func (mp *MPool) CurrNB() int64 {
	return mp.stats.NumCurrBytes.Load()
}

func (mp *MPool) Stats() *MPoolStats {
	return &mp.stats
}

// Reserve claims sz bytes. The claim is rolled back and an
// ErrMemoryLimitExceeded returned when it would cross the cap.
func (mp *MPool) Reserve(ctx context.Context, sz int64) error {
	if sz <= 0 {
		return nil
	}
	curr := mp.stats.recordAlloc(sz)
	if mp.cap != NoLimit && curr > mp.cap {
		mp.stats.recordFree(sz)
		v2.MemMPoolLimitExceededCounter.Inc()
		return moerr.NewMemoryLimitExceeded(ctx, mp.name, curr, mp.cap)
	}
	v2.MemMPoolReservedBytesGauge.Add(float64(sz))
	return nil
}

// Release returns sz bytes claimed by Reserve.
func (mp *MPool) Release(sz int64) {
	if sz <= 0 {
		return
	}
	if mp.stats.recordFree(sz) < 0 {
		panic(moerr.NewInternalErrorNoCtx("mpool %s released more than reserved", mp.name))
	}
	v2.MemMPoolReservedBytesGauge.Sub(float64(sz))
}

// ReportMemUsage reports every live pool, or only the pool called name.
func ReportMemUsage(name string) string {
	var ret string
	globalPools.Range(func(k, _ any) bool {
		m := k.(*MPool)
		if name == "" || m.name == name {
			ret += fmt.Sprintf("%s:\n%s", m.name, m.stats.Report("    "))
		}
		return true
	})
	return ret
}
