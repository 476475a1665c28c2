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

package hashjoin

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
)

// probeState is the scratch of one prober. Every buffer is sized once to the
// max batch size, probing never grows it.
type probeState struct {
	capacity int

	// probeIndexes[i] and buildIndexes[i] describe candidate match i.
	probeIndexes []ProbeIndex
	buildIndexes []hashmap.RowPtr

	// valids marks the window rows holding a non-null key, nil when all do.
	valids       *bitset.BitSet
	validsBuf    *bitset.BitSet
	trueValidity *bitset.BitSet

	// rowState counts the residual survivors of every window row and
	// rowStateIndexes maps candidate i back to its window row. Both are nil
	// unless a left, single or full join has a residual predicate.
	rowState        []uint32
	rowStateIndexes []uint32

	// markers holds a hashmap.MarkerKind per window row, only for semi, anti and mark joins.
	markers []hashmap.MarkerKind
}

func newProbeState(capacity int, typ JoinType, hasCond bool, trueValidity *bitset.BitSet) *probeState {
	s := &probeState{
		capacity:     capacity,
		probeIndexes: make([]ProbeIndex, 0, capacity),
		buildIndexes: make([]hashmap.RowPtr, 0, capacity),
		validsBuf:    bitset.New(uint(capacity)),
		trueValidity: trueValidity,
	}
	if typ.needRowState(hasCond) {
		s.rowState = make([]uint32, capacity)
		s.rowStateIndexes = make([]uint32, 0, capacity)
	}
	if typ.needProbeMarkers() {
		s.markers = make([]hashmap.MarkerKind, capacity)
	}
	return s
}

func newTrueValidity(capacity int) *bitset.BitSet {
	return bitset.New(uint(capacity)).FlipRange(0, uint(capacity))
}

func (s *probeState) len() int {
	return len(s.probeIndexes)
}

func (s *probeState) full() bool {
	return len(s.probeIndexes) == s.capacity
}

// push records candidate (row, ptr). rel is row relative to the window start.
func (s *probeState) push(row, rel int, ptr hashmap.RowPtr) {
	s.probeIndexes = append(s.probeIndexes, ProbeIndex{Row: uint32(row), Slot: uint32(len(s.probeIndexes))})
	s.buildIndexes = append(s.buildIndexes, ptr)
	if s.rowStateIndexes != nil {
		s.rowStateIndexes = append(s.rowStateIndexes, uint32(rel))
	}
}

// clear drops the candidates after they are assembled.
func (s *probeState) clear() {
	s.probeIndexes = s.probeIndexes[:0]
	s.buildIndexes = s.buildIndexes[:0]
	if s.rowStateIndexes != nil {
		s.rowStateIndexes = s.rowStateIndexes[:0]
	}
}

// resetWindow prepares the state for window rows [start, start+n) of keys.
func (s *probeState) resetWindow(keys []*vector.Vector, start, n int) {
	s.clear()
	s.valids = nil
	for _, vec := range keys {
		if !vec.HasNull() {
			continue
		}
		if s.valids == nil {
			s.valids = s.validsBuf.ClearAll().FlipRange(0, uint(n))
		}
		for i := 0; i < n; i++ {
			if vec.IsNull(uint64(start + i)) {
				s.valids.Clear(uint(i))
			}
		}
	}
	for i := 0; i < n && s.rowState != nil; i++ {
		s.rowState[i] = 0
	}
	for i := 0; i < n && s.markers != nil; i++ {
		s.markers[i] = hashmap.Unmatched
	}
}

func (s *probeState) validity() *bitset.BitSet {
	if s.valids != nil {
		return s.valids
	}
	return s.trueValidity
}
