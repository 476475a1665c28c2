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
	"math"

	"github.com/matrixorigin/mojoin/pkg/common/mpool"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
)

const (
	// UnitLimit is the number of rows hashed in one round.
	UnitLimit = 256

	// RowPtrSize is the in-memory size of a RowPtr.
	RowPtrSize = 8
	// keyOverhead approximates the cost of one distinct hash in the index.
	keyOverhead = 48
)

// RowPtr locates one row of the chunked build storage.
type RowPtr struct {
	ChunkIndex uint32
	RowIndex   uint32
}

// NullRowPtr stands for the missing build row of a null extended output row.
var NullRowPtr = RowPtr{ChunkIndex: math.MaxUint32, RowIndex: math.MaxUint32}

func (p RowPtr) IsNull() bool {
	return p == NullRowPtr
}

// MarkerKind is the match state of one row.
type MarkerKind = uint32

const (
	Unmatched MarkerKind = iota
	Matched
	// MatchedNull means every candidate left the residual condition unknown.
	MatchedNull
)

// JoinMap is the sealed build side of a hash join: the build chunks in arrival
// order, their evaluated key columns, and the hash index over the non-null keys.
type JoinMap struct {
	refCnt int64
	valid  bool
	sealed bool

	chunks []*batch.Batch
	keys   [][]*vector.Vector

	// index maps a key hash to the rows holding it, in arrival order.
	index      map[uint64][]RowPtr
	entries    int64
	rowCount   int64
	hasNullKey bool

	// markers[chunk][row] holds a MarkerKind, allocated at seal only when requested.
	markers [][]uint32

	m        *mpool.MPool
	reserved int64
}

// Iterator hashes key columns UnitLimit rows at a time.
// It owns its scratch, so every goroutine needs its own.
type Iterator struct {
	jm *JoinMap

	buf     []byte
	hashes  []uint64
	zValues []int64
	cands   [][]RowPtr
}
