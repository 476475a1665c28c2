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

package hashmap

import (
	"context"
	"sync/atomic"

	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/common/mpool"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	v2 "github.com/matrixorigin/mojoin/pkg/util/metric/v2"
)

// NewJoinMap returns an empty, unsealed join map holding one reference.
// Memory reserved through it is accounted against m.
func NewJoinMap(m *mpool.MPool) *JoinMap {
	return &JoinMap{
		refCnt: 1,
		valid:  true,
		index:  make(map[uint64][]RowPtr),
		m:      m,
	}
}

func (jm *JoinMap) NewIterator() *Iterator {
	return &Iterator{
		jm:      jm,
		hashes:  make([]uint64, UnitLimit),
		zValues: make([]int64, UnitLimit),
		cands:   make([][]RowPtr, UnitLimit),
	}
}

// AddChunk appends a build chunk with its evaluated key columns and returns
// the chunk index. The caller indexes the rows with an Iterator.
func (jm *JoinMap) AddChunk(bat *batch.Batch, keys []*vector.Vector) (int, error) {
	if jm.sealed {
		return 0, moerr.NewInvalidStateNoCtx("append to a sealed join map")
	}
	jm.chunks = append(jm.chunks, bat)
	jm.keys = append(jm.keys, keys)
	jm.rowCount += int64(bat.RowCount())
	return len(jm.chunks) - 1, nil
}

// Reserve accounts sz more bytes to the join map.
func (jm *JoinMap) Reserve(ctx context.Context, sz int64) error {
	if jm.m != nil {
		if err := jm.m.Reserve(ctx, sz); err != nil {
			return err
		}
	}
	jm.reserved += sz
	v2.JoinBuildBytesGauge.Add(float64(sz))
	return nil
}

// MarkerSize is the memory needed by Seal(true).
func (jm *JoinMap) MarkerSize() int64 {
	return jm.rowCount * 4
}

// IndexSize estimates the memory held by the hash index.
func (jm *JoinMap) IndexSize() int64 {
	return jm.entries*RowPtrSize + int64(len(jm.index))*keyOverhead
}

// Seal freezes the join map. With markers set, every build row gets a
// match marker that probers may set concurrently.
func (jm *JoinMap) Seal(markers bool) error {
	if jm.sealed {
		return moerr.NewInvalidStateNoCtx("join map sealed twice")
	}
	if markers {
		jm.markers = make([][]uint32, len(jm.chunks))
		for i, bat := range jm.chunks {
			jm.markers[i] = make([]uint32, bat.RowCount())
		}
	}
	jm.sealed = true
	return nil
}

func (jm *JoinMap) IsSealed() bool {
	return jm.sealed
}

func (jm *JoinMap) IsValid() bool {
	return jm.valid
}

func (jm *JoinMap) GetRowCount() int64 {
	return jm.rowCount
}

// GetGroupCount returns the number of distinct key hashes.
func (jm *JoinMap) GetGroupCount() int {
	return len(jm.index)
}

// GetEntryCount returns the number of indexed rows.
func (jm *JoinMap) GetEntryCount() int64 {
	return jm.entries
}

func (jm *JoinMap) HasNullKey() bool {
	return jm.hasNullKey
}

func (jm *JoinMap) ChunkCount() int {
	return len(jm.chunks)
}

func (jm *JoinMap) Chunk(i int) *batch.Batch {
	return jm.chunks[i]
}

// KeyEqual reports whether build row ptr and row of the probe key columns hold equal keys.
func (jm *JoinMap) KeyEqual(ptr RowPtr, probe []*vector.Vector, row int) bool {
	keys := jm.keys[ptr.ChunkIndex]
	for i, vec := range keys {
		if !vector.Equal(vec, int(ptr.RowIndex), probe[i], row) {
			return false
		}
	}
	return true
}

func (jm *JoinMap) HasMarkers() bool {
	return jm.markers != nil
}

// Mark flags ptr as matched. Marking is idempotent and safe for concurrent use.
func (jm *JoinMap) Mark(ptr RowPtr) {
	m := &jm.markers[ptr.ChunkIndex][ptr.RowIndex]
	if atomic.LoadUint32(m) != Matched {
		atomic.StoreUint32(m, Matched)
	}
}

func (jm *JoinMap) IsMarked(ptr RowPtr) bool {
	return atomic.LoadUint32(&jm.markers[ptr.ChunkIndex][ptr.RowIndex]) == Matched
}

func (jm *JoinMap) IncRef(cnt int32) {
	atomic.AddInt64(&jm.refCnt, int64(cnt))
}

// Free drops one reference, the last one releases the chunks and the reserved memory.
func (jm *JoinMap) Free() {
	if atomic.AddInt64(&jm.refCnt, -1) != 0 {
		return
	}
	jm.chunks = nil
	jm.keys = nil
	jm.index = nil
	jm.markers = nil
	if jm.m != nil {
		jm.m.Release(jm.reserved)
	}
	v2.JoinBuildBytesGauge.Sub(float64(jm.reserved))
	jm.reserved = 0
	jm.valid = false
}

// Size returns the bytes reserved by the join map.
func (jm *JoinMap) Size() int64 {
	return jm.reserved
}
