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
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/matrixorigin/mojoin/pkg/common/mpool"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	"github.com/matrixorigin/mojoin/pkg/sql/colexec"
	"github.com/stretchr/testify/require"
)

// relRow is (key, val) of either input.
type relRow struct {
	key, val         int64
	keyNull, valNull bool
}

func (r relRow) values() []any {
	var key, val any = r.key, r.val
	if r.keyNull {
		key = nil
	}
	if r.valNull {
		val = nil
	}
	return []any{key, val}
}

func randomRelation(r *rand.Rand, maxRows int) []relRow {
	rows := make([]relRow, r.Intn(maxRows+1))
	for i := range rows {
		rows[i] = relRow{
			key:     int64(r.Intn(5)),
			val:     int64(r.Intn(10)),
			keyNull: r.Intn(10) == 0,
			valNull: r.Intn(10) == 0,
		}
	}
	return rows
}

// toBatches splits rows into batches of at most size rows.
func toBatches(t *testing.T, rows []relRow, size int) []*batch.Batch {
	var bats []*batch.Batch
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		n := end - start
		keys, vals := make([]int64, n), make([]int64, n)
		keyNulls, valNulls := make([]bool, n), make([]bool, n)
		for i, row := range rows[start:end] {
			keys[i], vals[i] = row.key, row.val
			keyNulls[i], valNulls[i] = row.keyNull, row.valNull
		}
		bat, err := batch.NewWithVecs(
			vector.NewVecWithData(i64, keys, keyNulls),
			vector.NewVecWithData(i64, vals, valNulls))
		require.NoError(t, err)
		bats = append(bats, bat)
	}
	return bats
}

// newPropArg joins on key, the residual predicate is probe.val < build.val.
func newPropArg(t *testing.T, jt JoinType, withCond bool, maxBatchSize int) Argument {
	arg := Argument{
		JoinType:     jt,
		BuildTypes:   []types.Type{i64, i64},
		ProbeTypes:   []types.Type{i64, i64},
		MaxBatchSize: maxBatchSize,
	}
	if jt != Cross {
		arg.BuildKeys = []colexec.ExpressionExecutor{colexec.NewColumnExecutor(0, 0, i64)}
		arg.ProbeKeys = []colexec.ExpressionExecutor{colexec.NewColumnExecutor(0, 0, i64)}
	}
	if withCond {
		cond, err := colexec.NewFunctionExecutor(colexec.LESS_THAN,
			colexec.NewColumnExecutor(0, 1, i64), colexec.NewColumnExecutor(1, 1, i64))
		require.NoError(t, err)
		arg.Cond = cond
	}
	return arg
}

const (
	condFalse = iota
	condTrue
	condUnknown
)

// nestedLoopJoin is the reference result of joining probe with build, as sorted rows.
func nestedLoopJoin(jt JoinType, withCond bool, probe, build []relRow) []string {
	keyEqual := func(p, b relRow) bool {
		if jt == Cross {
			return true
		}
		return !p.keyNull && !b.keyNull && p.key == b.key
	}
	residual := func(p, b relRow) int {
		switch {
		case !withCond:
			return condTrue
		case p.valNull || b.valNull:
			return condUnknown
		case p.val < b.val:
			return condTrue
		}
		return condFalse
	}
	nulls := []any{nil, nil}
	cat := func(parts ...[]any) string {
		var row []any
		for _, part := range parts {
			row = append(row, part...)
		}
		return fmt.Sprint(row)
	}
	buildHasNullKey := false
	for _, b := range build {
		buildHasNullKey = buildHasNullKey || b.keyNull
	}

	var rows []string
	buildMatched := make([]bool, len(build))
	for _, p := range probe {
		matched, unknown := false, false
		for j, b := range build {
			if !keyEqual(p, b) {
				continue
			}
			switch residual(p, b) {
			case condTrue:
				matched = true
				buildMatched[j] = true
				switch jt {
				case Inner, Left, Full, Cross:
					rows = append(rows, cat(p.values(), b.values()))
				case Right:
					rows = append(rows, cat(b.values(), p.values()))
				}
			case condUnknown:
				unknown = true
			}
		}
		switch jt {
		case Left, Full:
			if !matched {
				rows = append(rows, cat(p.values(), nulls))
			}
		case Semi:
			if matched {
				rows = append(rows, cat(p.values()))
			}
		case Anti:
			if !matched {
				rows = append(rows, cat(p.values()))
			}
		case Mark:
			var mark any = false
			switch {
			case len(build) == 0:
			case matched:
				mark = true
			case p.keyNull, unknown, buildHasNullKey:
				mark = nil
			}
			rows = append(rows, cat(p.values(), []any{mark}))
		}
	}
	for j, b := range build {
		switch {
		case jt == Right && !buildMatched[j]:
			rows = append(rows, cat(b.values(), nulls))
		case jt == Full && !buildMatched[j]:
			rows = append(rows, cat(nulls, b.values()))
		case jt == RightSemi && buildMatched[j]:
			rows = append(rows, cat(b.values()))
		case jt == RightAnti && !buildMatched[j]:
			rows = append(rows, cat(b.values()))
		}
	}
	sort.Strings(rows)
	return rows
}

func sortedRows(outs ...[]*batch.Batch) []string {
	var rows []string
	for _, o := range outs {
		rows = append(rows, rowStrings(o)...)
	}
	sort.Strings(rows)
	return rows
}

var propertyJoinTypes = []JoinType{Inner, Left, Right, Full, Semi, Anti, RightSemi, RightAnti, Mark, Cross}

func TestAgainstNestedLoop(t *testing.T) {
	r := rand.New(rand.NewSource(20221017))
	for round := 0; round < 40; round++ {
		build := randomRelation(r, 20)
		probe := randomRelation(r, 20)
		maxBatchSize := 1 + r.Intn(5)
		for _, jt := range propertyJoinTypes {
			for _, withCond := range []bool{false, true} {
				name := fmt.Sprintf("round %d %s cond=%v batch=%d", round, jt, withCond, maxBatchSize)
				m := mpool.MustNewZero()
				hj := buildJoin(t, newProc(m), newPropArg(t, jt, withCond, maxBatchSize), toBatches(t, build, 1+r.Intn(7))...)
				probed, finalized := runJoin(t, hj, toBatches(t, probe, 1+r.Intn(6))...)
				for _, bat := range append(probed, finalized...) {
					require.LessOrEqual(t, bat.RowCount(), maxBatchSize, name)
				}
				require.Equal(t, nestedLoopJoin(jt, withCond, probe, build), sortedRows(probed, finalized), name)
				hj.Free()
				require.Equal(t, int64(0), m.CurrNB(), name)
			}
		}
	}
}

func TestJoinProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	run := func(jt JoinType, probe, build []relRow) []string {
		hj := buildJoin(t, newProc(mpool.MustNewZero()), newPropArg(t, jt, false, 4), toBatches(t, build, 5)...)
		defer hj.Free()
		probed, finalized := runJoin(t, hj, toBatches(t, probe, 3)...)
		return sortedRows(probed, finalized)
	}
	for round := 0; round < 20; round++ {
		build := randomRelation(r, 15)
		probe := randomRelation(r, 15)

		// full outer is left outer plus the unmatched build rows of right outer
		left := run(Left, probe, build)
		full := run(Full, probe, build)
		unmatchedBuild := 0
		for _, row := range run(RightAnti, probe, build) {
			require.Contains(t, full, "[<nil> <nil> "+row[1:])
			unmatchedBuild++
		}
		require.Len(t, full, len(left)+unmatchedBuild)

		// every probe row shows up in the left outer output
		require.GreaterOrEqual(t, len(left), len(probe))

		// semi emits a probe row once however many rows it matches
		semi := run(Semi, probe, build)
		anti := run(Anti, probe, build)
		require.Len(t, append(semi, anti...), len(probe))
		for _, row := range anti {
			require.NotContains(t, semi, row, "a probe row is either matched or not")
		}
	}
}
