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

package hashbuild

import (
	"bytes"
	"context"

	"github.com/dustin/go-humanize"
	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	"github.com/matrixorigin/mojoin/pkg/logutil/logutil2"
	v2 "github.com/matrixorigin/mojoin/pkg/util/metric/v2"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
	"go.uber.org/zap"
)

const opName = "hash_build"

func (hashBuild *HashBuild) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString(": hash build ")
}

// Prepare checks the key expressions and starts an empty join map.
func (hashBuild *HashBuild) Prepare(proc *process.Process) error {
	if hashBuild.OpAnalyzer == nil {
		hashBuild.OpAnalyzer = process.NewAnalyzer("hash build")
	} else {
		hashBuild.OpAnalyzer.Reset()
	}
	for i, cond := range hashBuild.Conditions {
		if typ := cond.ReturnType(); !typ.IsHashable() {
			return moerr.NewNotSupported(proc.Ctx, "hash join key %d of type %s", i, typ)
		}
	}
	hashBuild.ctr = container{
		state: Build,
		jm:    hashmap.NewJoinMap(proc.Mp()),
	}
	hashBuild.ctr.itr = hashBuild.ctr.jm.NewIterator()
	return nil
}

// Append adds one build batch as a new chunk and indexes its keys.
// The join map keeps bat, the caller must not modify it afterwards.
// Any error aborts the build and discards everything built so far.
func (hashBuild *HashBuild) Append(ctx context.Context, proc *process.Process, bat *batch.Batch) error {
	ctr := &hashBuild.ctr
	switch ctr.state {
	case Sealed:
		return moerr.NewInvalidState(ctx, "hash build already sealed")
	case Aborted:
		return ctr.err
	}
	if err := ctx.Err(); err != nil {
		return hashBuild.abort(ctx, moerr.ConvertGoError(ctx, err))
	}
	if bat == nil || bat.IsEmpty() {
		return nil
	}
	if err := hashBuild.checkSchema(ctx, bat); err != nil {
		return hashBuild.abort(ctx, err)
	}

	hashBuild.OpAnalyzer.Start()
	defer hashBuild.OpAnalyzer.Stop()
	hashBuild.OpAnalyzer.Input(bat)

	keys, keySize, err := hashBuild.evalJoinCondition(proc, bat)
	if err != nil {
		return hashBuild.abort(ctx, err)
	}
	chunkSize := int64(bat.Size()) + keySize
	if err = ctr.jm.Reserve(ctx, chunkSize); err != nil {
		return hashBuild.abort(ctx, err)
	}
	idx, err := ctr.jm.AddChunk(bat, keys)
	if err != nil {
		return hashBuild.abort(ctx, err)
	}

	before := ctr.jm.IndexSize()
	count := bat.RowCount()
	// a join without keys keeps its rows unindexed
	for i := 0; len(keys) > 0 && i < count; i += hashmap.UnitLimit {
		n := count - i
		if n > hashmap.UnitLimit {
			n = hashmap.UnitLimit
		}
		if _, err = ctr.itr.Insert(idx, i, n, keys); err != nil {
			return hashBuild.abort(ctx, err)
		}
	}
	indexSize := ctr.jm.IndexSize() - before
	if err = ctr.jm.Reserve(ctx, indexSize); err != nil {
		return hashBuild.abort(ctx, err)
	}

	hashBuild.OpAnalyzer.Alloc(chunkSize + indexSize)
	v2.JoinBuildRowsCounter.Add(float64(count))
	return nil
}

// Seal freezes the join map and hands it over. The caller owns one reference.
func (hashBuild *HashBuild) Seal(ctx context.Context) (*hashmap.JoinMap, error) {
	ctr := &hashBuild.ctr
	switch ctr.state {
	case Sealed:
		return nil, moerr.NewInvalidState(ctx, "hash build sealed twice")
	case Aborted:
		return nil, ctr.err
	}
	if hashBuild.NeedMarkers {
		if err := ctr.jm.Reserve(ctx, ctr.jm.MarkerSize()); err != nil {
			return nil, hashBuild.abort(ctx, err)
		}
	}
	if err := ctr.jm.Seal(hashBuild.NeedMarkers); err != nil {
		return nil, hashBuild.abort(ctx, err)
	}
	ctr.state = Sealed
	jm := ctr.jm
	ctr.jm, ctr.itr = nil, nil

	logutil2.Info(ctx, "hash build sealed",
		zap.Int64("rows", jm.GetRowCount()),
		zap.Int("chunks", jm.ChunkCount()),
		zap.Int64("entries", jm.GetEntryCount()),
		zap.Int("groups", jm.GetGroupCount()),
		zap.Bool("null-key", jm.HasNullKey()),
		zap.String("memory", humanize.IBytes(uint64(jm.Size()))))
	return jm, nil
}

// Abort discards the partial join map, later calls return err.
func (hashBuild *HashBuild) Abort(ctx context.Context, err error) {
	if hashBuild.ctr.state == Build {
		_ = hashBuild.abort(ctx, err)
	}
}

func (hashBuild *HashBuild) abort(ctx context.Context, err error) error {
	ctr := &hashBuild.ctr
	var rows int64
	if ctr.jm != nil {
		rows = ctr.jm.GetRowCount()
		ctr.jm.Free()
		ctr.jm, ctr.itr = nil, nil
	}
	ctr.state = Aborted
	ctr.err = err
	logutil2.Warn(ctx, "hash build aborted", zap.Int64("rows", rows), zap.Error(err))
	return err
}

// Free releases a join map that was never sealed.
func (hashBuild *HashBuild) Free(proc *process.Process) {
	ctr := &hashBuild.ctr
	if ctr.jm != nil {
		ctr.jm.Free()
		ctr.jm, ctr.itr = nil, nil
	}
}

func (hashBuild *HashBuild) checkSchema(ctx context.Context, bat *batch.Batch) error {
	if hashBuild.Typs == nil {
		return nil
	}
	if len(bat.Vecs) != len(hashBuild.Typs) {
		return moerr.NewInvalidInput(ctx, "build batch has %d columns, expect %d", len(bat.Vecs), len(hashBuild.Typs))
	}
	for i, vec := range bat.Vecs {
		if vec.GetType().Oid != hashBuild.Typs[i].Oid {
			return moerr.NewInvalidInput(ctx, "build column %d is %s, expect %s", i, vec.GetType(), hashBuild.Typs[i])
		}
	}
	return nil
}

// evalJoinCondition returns the key columns of bat and the bytes they hold
// beyond the columns of bat itself.
func (hashBuild *HashBuild) evalJoinCondition(proc *process.Process, bat *batch.Batch) ([]*vector.Vector, int64, error) {
	keys := make([]*vector.Vector, len(hashBuild.Conditions))
	var size int64
	for i, cond := range hashBuild.Conditions {
		vec, err := cond.Eval(proc, []*batch.Batch{bat})
		if err != nil {
			return nil, 0, err
		}
		if vec.Length() != bat.RowCount() {
			return nil, 0, moerr.NewInternalError(proc.Ctx, "join key %d has %d rows, batch has %d", i, vec.Length(), bat.RowCount())
		}
		if !vec.GetType().IsHashable() {
			return nil, 0, moerr.NewNotSupported(proc.Ctx, "hash join key %d of type %s", i, vec.GetType())
		}
		if !ownedBy(vec, bat) {
			size += int64(vec.Size())
		}
		keys[i] = vec
	}
	return keys, size, nil
}

func ownedBy(vec *vector.Vector, bat *batch.Batch) bool {
	for _, v := range bat.Vecs {
		if v == vec {
			return true
		}
	}
	return false
}
