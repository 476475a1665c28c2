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
	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
)

type layout int

const (
	probeThenBuild layout = iota
	buildThenProbe
	probeOnly
	buildOnly
	probeThenMark
)

func layoutOf(jt JoinType) layout {
	switch jt {
	case Right:
		return buildThenProbe
	case Semi, Anti:
		return probeOnly
	case RightSemi, RightAnti:
		return buildOnly
	case Mark:
		return probeThenMark
	default:
		return probeThenBuild
	}
}

// outputTypes returns the column types of the batches a join of type jt emits.
func outputTypes(jt JoinType, probe, build []types.Type) []types.Type {
	typs := make([]types.Type, 0, len(probe)+len(build)+1)
	switch layoutOf(jt) {
	case buildThenProbe:
		typs = append(append(typs, build...), probe...)
	case probeOnly:
		typs = append(typs, probe...)
	case buildOnly:
		typs = append(typs, build...)
	case probeThenMark:
		typs = append(append(typs, probe...), types.T_bool.ToType())
	default:
		typs = append(append(typs, probe...), build...)
	}
	return typs
}

// assembler gathers probe rows and build rows into output batches of at
// most maxRows rows.
type assembler struct {
	layout     layout
	probeTypes []types.Type
	buildTypes []types.Type
	typs       []types.Type
	maxRows    int

	jm *hashmap.JoinMap

	cur  *batch.Batch
	outs []*batch.Batch
}

func newAssembler(jt JoinType, probeTypes, buildTypes []types.Type, maxRows int, jm *hashmap.JoinMap) *assembler {
	return &assembler{
		layout:     layoutOf(jt),
		probeTypes: probeTypes,
		buildTypes: buildTypes,
		typs:       outputTypes(jt, probeTypes, buildTypes),
		maxRows:    maxRows,
		jm:         jm,
	}
}

func (a *assembler) target() *batch.Batch {
	if a.cur != nil && a.cur.RowCount() < a.maxRows {
		return a.cur
	}
	if a.cur != nil {
		a.outs = append(a.outs, a.cur)
	}
	a.cur = batch.NewWithSchema(a.typs, a.maxRows)
	return a.cur
}

// appendPair emits probe row row of probe joined with build row ptr. A nil
// probe or a null ptr fills that side with nulls.
func (a *assembler) appendPair(probe *batch.Batch, row int, ptr hashmap.RowPtr) error {
	bat := a.target()
	var err error
	switch a.layout {
	case buildThenProbe:
		if err = a.appendBuildCols(bat, 0, ptr); err == nil {
			err = a.appendProbeCols(bat, len(a.buildTypes), probe, row)
		}
	case probeOnly:
		err = a.appendProbeCols(bat, 0, probe, row)
	case buildOnly:
		err = a.appendBuildCols(bat, 0, ptr)
	default:
		if err = a.appendProbeCols(bat, 0, probe, row); err == nil {
			err = a.appendBuildCols(bat, len(a.probeTypes), ptr)
		}
	}
	if err != nil {
		return err
	}
	bat.AddRowCount(1)
	return nil
}

func (a *assembler) appendProbe(probe *batch.Batch, row int) error {
	return a.appendPair(probe, row, hashmap.NullRowPtr)
}

func (a *assembler) appendBuild(ptr hashmap.RowPtr) error {
	return a.appendPair(nil, 0, ptr)
}

// appendMark emits probe row row followed by its mark, NULL when isNull is set.
func (a *assembler) appendMark(probe *batch.Batch, row int, mark, isNull bool) error {
	bat := a.target()
	if err := a.appendProbeCols(bat, 0, probe, row); err != nil {
		return err
	}
	vec := bat.Vecs[len(a.probeTypes)]
	var err error
	if isNull {
		err = vec.UnionNull()
	} else {
		err = vector.Append(vec, mark, false)
	}
	if err != nil {
		return err
	}
	bat.AddRowCount(1)
	return nil
}

func (a *assembler) appendProbeCols(bat *batch.Batch, off int, probe *batch.Batch, row int) error {
	for i := range a.probeTypes {
		var err error
		if probe == nil {
			err = bat.Vecs[off+i].UnionNull()
		} else {
			err = bat.Vecs[off+i].UnionOne(probe.Vecs[i], int64(row))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) appendBuildCols(bat *batch.Batch, off int, ptr hashmap.RowPtr) error {
	if ptr.IsNull() {
		for i := range a.buildTypes {
			if err := bat.Vecs[off+i].UnionNull(); err != nil {
				return err
			}
		}
		return nil
	}
	chunk := a.jm.Chunk(int(ptr.ChunkIndex))
	for i := range a.buildTypes {
		if err := bat.Vecs[off+i].UnionOne(chunk.Vecs[i], int64(ptr.RowIndex)); err != nil {
			return err
		}
	}
	return nil
}

// take hands over every batch assembled so far.
func (a *assembler) take() []*batch.Batch {
	if a.cur != nil && !a.cur.IsEmpty() {
		a.outs = append(a.outs, a.cur)
	}
	outs := a.outs
	a.cur, a.outs = nil, nil
	return outs
}

func (a *assembler) reset() {
	a.cur, a.outs = nil, nil
}
