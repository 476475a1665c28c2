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
	"strings"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	"github.com/matrixorigin/mojoin/pkg/sql/colexec"
	"github.com/matrixorigin/mojoin/pkg/sql/colexec/hashbuild"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
)

// JoinType selects the output rows and the unmatched row policy of a hash join.
type JoinType int

const (
	Inner JoinType = iota
	Left
	Right
	Full
	Semi
	Anti
	RightSemi
	RightAnti
	Single
	Mark
	Cross
)

var joinTypeNames = [...]string{
	Inner:     "INNER",
	Left:      "LEFT",
	Right:     "RIGHT",
	Full:      "FULL",
	Semi:      "SEMI",
	Anti:      "ANTI",
	RightSemi: "RIGHT SEMI",
	RightAnti: "RIGHT ANTI",
	Single:    "SINGLE",
	Mark:      "MARK",
	Cross:     "CROSS",
}

func (t JoinType) String() string {
	if t.valid() {
		return joinTypeNames[t]
	}
	return "UNKNOWN"
}

// ParseJoinType accepts the names printed by String, case insensitive,
// with '_' or '-' standing for the space, e.g. "right_anti".
func ParseJoinType(s string) (JoinType, bool) {
	s = strings.ToUpper(strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s)))
	for t, name := range joinTypeNames {
		if name == s {
			return JoinType(t), true
		}
	}
	return 0, false
}

func (t JoinType) valid() bool {
	return t >= Inner && t <= Cross
}

// needRowState: per probe row counters of residual survivors.
func (t JoinType) needRowState(hasCond bool) bool {
	return hasCond && (t == Left || t == Single || t == Full)
}

// needProbeMarkers: per probe row match markers resolved at the end of each window.
func (t JoinType) needProbeMarkers() bool {
	return t == Semi || t == Anti || t == Mark
}

// needBuildMarkers: per build row markers resolved by Finalize.
func (t JoinType) needBuildMarkers() bool {
	return t == Right || t == Full || t == RightSemi || t == RightAnti
}

// nullExtendsProbe reports whether unmatched probe rows are paired with a null build row.
func (t JoinType) nullExtendsProbe() bool {
	return t == Left || t == Single || t == Full
}

// emitsPairs reports whether a passing match becomes an output row during probe.
func (t JoinType) emitsPairs() bool {
	switch t {
	case Inner, Left, Right, Full, Single, Cross:
		return true
	}
	return false
}

const (
	Build = iota
	Probe
	Finalize
	End
)

type Argument struct {
	JoinType JoinType
	// BuildTypes and ProbeTypes are the column types of the two inputs.
	BuildTypes []types.Type
	ProbeTypes []types.Type
	// BuildKeys evaluate against {build batch}, ProbeKeys against {probe batch}.
	BuildKeys []colexec.ExpressionExecutor
	ProbeKeys []colexec.ExpressionExecutor
	// Cond is the residual predicate, evaluated against {probe rows, build rows}.
	Cond colexec.ExpressionExecutor
	// MaxBatchSize bounds the rows of every output batch and the scratch capacity.
	MaxBatchSize int
}

type container struct {
	state int

	builder hashbuild.HashBuild
	jm      *hashmap.JoinMap
	// allRows lists every build row in chunk order, only for cross joins.
	allRows []hashmap.RowPtr

	outTypes     []types.Type
	trueValidity *bitset.BitSet

	// sealed is closed once the join map is ready or the build failed.
	sealed   chan struct{}
	buildErr error

	mu         sync.Mutex
	active     int
	finalizing bool
	// drained is closed when no prober is active after Finalize started.
	drained chan struct{}
	stats   *process.OperatorStats
	freed   bool
}

// HashJoin owns the build side of one join and hands out probers to workers.
// Build, Seal and Finalize are called from one goroutine, probers run concurrently.
type HashJoin struct {
	ctr container
	Argument

	proc       *process.Process
	OpAnalyzer process.Analyzer
}

// ProbeIndex is one candidate match: probe row Row feeds output slot Slot.
type ProbeIndex struct {
	Row  uint32
	Slot uint32
}

type cursor struct {
	row     int
	cand    int
	matches int
}

// Prober probes batches against the sealed join map. A prober belongs to one worker.
type Prober struct {
	hj    *HashJoin
	state *probeState
	itr   *hashmap.Iterator
	asm   *assembler

	bat  *batch.Batch
	keys []*vector.Vector

	// lookup block of the iterator
	blockStart int
	blockEnd   int
	cands      [][]hashmap.RowPtr

	cross    bool
	winStart int
	cur      cursor
	closed   bool

	// join type behavior, resolved once per prober
	needSlot     bool
	stopOnMatch  bool
	onMatch      func(row int, ptr hashmap.RowPtr) error
	afterRow     func(row int) bool
	flush        func() error
	finishWindow func(start, end int) error
	// residual outcome of candidate i
	onPass    func(i int) error
	onUnknown func(i int)

	analyzer process.Analyzer
}
