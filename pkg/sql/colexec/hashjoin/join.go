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
	"bytes"
	"context"

	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/config"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/logutil/logutil2"
	"github.com/matrixorigin/mojoin/pkg/sql/colexec/hashbuild"
	v2 "github.com/matrixorigin/mojoin/pkg/util/metric/v2"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
	"go.uber.org/zap"
)

const opName = "hash_join"

func (hj *HashJoin) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString(": ")
	buf.WriteString(hj.JoinType.String())
	buf.WriteString(" hash join ")
}

// New checks arg and returns a join ready to accept build batches.
func New(proc *process.Process, arg Argument) (*HashJoin, error) {
	ctx := proc.Ctx
	if !arg.JoinType.valid() {
		return nil, moerr.NewInvalidInput(ctx, "unknown join type %d", int(arg.JoinType))
	}
	if arg.MaxBatchSize <= 0 {
		arg.MaxBatchSize = config.DefaultMaxBatchSize
		if proc.Lim.BatchRows > 0 {
			arg.MaxBatchSize = int(proc.Lim.BatchRows)
		}
	}
	if len(arg.BuildTypes) == 0 || len(arg.ProbeTypes) == 0 {
		return nil, moerr.NewInvalidInput(ctx, "hash join needs the column types of both inputs")
	}
	if len(arg.BuildKeys) != len(arg.ProbeKeys) {
		return nil, moerr.NewInvalidInput(ctx, "hash join has %d build keys and %d probe keys", len(arg.BuildKeys), len(arg.ProbeKeys))
	}
	if arg.JoinType == Cross && len(arg.BuildKeys) > 0 {
		return nil, moerr.NewInvalidInput(ctx, "cross join takes no join keys")
	}
	if arg.JoinType != Cross && len(arg.BuildKeys) == 0 {
		return nil, moerr.NewInvalidInput(ctx, "%s join needs at least one join key", arg.JoinType)
	}
	for i := range arg.BuildKeys {
		bt, pt := arg.BuildKeys[i].ReturnType(), arg.ProbeKeys[i].ReturnType()
		if !bt.IsHashable() || !pt.IsHashable() {
			return nil, moerr.NewNotSupported(ctx, "hash join key %d of type %s = %s", i, bt, pt)
		}
		if !bt.KeyCompatible(pt) {
			return nil, moerr.NewJoinKeyTypeMismatch(ctx, i, bt.String(), pt.String())
		}
	}
	if arg.Cond != nil && arg.Cond.ReturnType().Oid != types.T_bool {
		return nil, moerr.NewInvalidInput(ctx, "residual predicate returns %s", arg.Cond.ReturnType())
	}

	hj := &HashJoin{
		Argument:   arg,
		proc:       proc,
		OpAnalyzer: process.NewAnalyzer("hash join"),
	}
	hj.ctr = container{
		state:        Build,
		outTypes:     outputTypes(arg.JoinType, arg.ProbeTypes, arg.BuildTypes),
		trueValidity: newTrueValidity(arg.MaxBatchSize),
		sealed:       make(chan struct{}),
		drained:      make(chan struct{}),
		stats:        process.NewOperatorStats("hash join"),
	}
	hj.ctr.builder.Argument = hashbuild.Argument{
		Typs:        arg.BuildTypes,
		Conditions:  arg.BuildKeys,
		NeedMarkers: arg.JoinType.needBuildMarkers(),
	}
	if err := hj.ctr.builder.Prepare(proc); err != nil {
		return nil, err
	}
	return hj, nil
}

// OutputTypes returns the column types of every batch the join emits.
func (hj *HashJoin) OutputTypes() []types.Type {
	return hj.ctr.outTypes
}

// Build adds one build batch. The join keeps bat until Free.
func (hj *HashJoin) Build(ctx context.Context, bat *batch.Batch) error {
	ctr := &hj.ctr
	if ctr.state != Build {
		if ctr.buildErr != nil {
			return ctr.buildErr
		}
		return moerr.NewInvalidState(ctx, "build after seal")
	}
	if err := ctr.builder.Append(ctx, hj.proc, bat); err != nil {
		hj.fail(err)
		return err
	}
	return nil
}

// Seal ends the build phase and releases the probers waiting for it.
func (hj *HashJoin) Seal(ctx context.Context) error {
	ctr := &hj.ctr
	if ctr.state != Build {
		if ctr.buildErr != nil {
			return ctr.buildErr
		}
		return moerr.NewInvalidState(ctx, "hash join sealed twice")
	}
	jm, err := ctr.builder.Seal(ctx)
	if err != nil {
		hj.fail(err)
		return err
	}
	if hj.JoinType == Cross {
		if err = jm.Reserve(ctx, jm.GetRowCount()*hashmap.RowPtrSize); err != nil {
			jm.Free()
			hj.fail(err)
			return err
		}
		ctr.allRows = make([]hashmap.RowPtr, 0, jm.GetRowCount())
		for i := 0; i < jm.ChunkCount(); i++ {
			for j := 0; j < jm.Chunk(i).RowCount(); j++ {
				ctr.allRows = append(ctr.allRows, hashmap.RowPtr{ChunkIndex: uint32(i), RowIndex: uint32(j)})
			}
		}
	}
	ctr.jm = jm
	ctr.mu.Lock()
	ctr.stats.Merge(ctr.builder.OpAnalyzer.GetOpStats())
	ctr.mu.Unlock()
	ctr.state = Probe
	close(ctr.sealed)
	return nil
}

// Abort fails a join whose build input broke, waiting probers return err.
func (hj *HashJoin) Abort(ctx context.Context, err error) {
	if hj.ctr.state != Build {
		return
	}
	hj.ctr.builder.Abort(ctx, err)
	hj.fail(err)
}

func (hj *HashJoin) fail(err error) {
	ctr := &hj.ctr
	ctr.buildErr = err
	ctr.state = End
	close(ctr.sealed)
}

// waitSealed is the build barrier.
func (hj *HashJoin) waitSealed(ctx context.Context) error {
	select {
	case <-hj.ctr.sealed:
	case <-ctx.Done():
		return moerr.ConvertGoError(ctx, ctx.Err())
	}
	return hj.ctr.buildErr
}

// NewProber registers a probe worker. Finalize waits until every prober is closed.
func (hj *HashJoin) NewProber() (*Prober, error) {
	ctr := &hj.ctr
	ctr.mu.Lock()
	defer ctr.mu.Unlock()
	if ctr.freed || ctr.finalizing {
		return nil, moerr.NewInvalidState(hj.proc.Ctx, "new prober after finalize")
	}
	ctr.active++
	p := &Prober{
		hj:       hj,
		state:    newProbeState(hj.MaxBatchSize, hj.JoinType, hj.Cond != nil, ctr.trueValidity),
		asm:      newAssembler(hj.JoinType, hj.ProbeTypes, hj.BuildTypes, hj.MaxBatchSize, nil),
		cross:    hj.JoinType == Cross,
		analyzer: process.NewAnalyzer("hash probe"),
	}
	p.resolve()
	return p, nil
}

// Finalize waits for every prober to close and emits the rows that depend on
// the complete match set: unmatched build rows of right and full joins, and
// the results of right semi and right anti joins.
func (hj *HashJoin) Finalize(ctx context.Context) ([]*batch.Batch, error) {
	ctr := &hj.ctr
	switch ctr.state {
	case Build:
		return nil, moerr.NewInvalidState(ctx, "finalize before seal")
	case End:
		if ctr.buildErr != nil {
			return nil, ctr.buildErr
		}
		return nil, moerr.NewInvalidState(ctx, "hash join finalized twice")
	case Finalize:
		return nil, moerr.NewInvalidState(ctx, "hash join finalized twice")
	}

	ctr.mu.Lock()
	ctr.finalizing = true
	if ctr.active == 0 {
		close(ctr.drained)
	}
	ctr.mu.Unlock()
	ctr.state = Finalize

	select {
	case <-ctr.drained:
	case <-ctx.Done():
		return nil, moerr.ConvertGoError(ctx, ctx.Err())
	}

	hj.OpAnalyzer.Start()
	outs, err := hj.reconcile(ctx)
	hj.OpAnalyzer.Stop()
	if err != nil {
		return nil, err
	}
	ctr.state = End

	var rows int
	for _, bat := range outs {
		hj.OpAnalyzer.Output(bat)
		rows += bat.RowCount()
	}
	v2.JoinFinalizeOutputRowsCounter.Add(float64(rows))

	ctr.mu.Lock()
	ctr.stats.Merge(hj.OpAnalyzer.GetOpStats())
	stats := ctr.stats.String()
	ctr.mu.Unlock()
	logutil2.Debug(ctx, "hash join finalized",
		zap.String("type", hj.JoinType.String()),
		zap.Int("rows", rows),
		zap.String("stats", stats))
	return outs, nil
}

// Stats returns the merged statistics of the build, the closed probers and Finalize.
func (hj *HashJoin) Stats() *process.OperatorStats {
	ctr := &hj.ctr
	ctr.mu.Lock()
	defer ctr.mu.Unlock()
	stats := *ctr.stats
	return &stats
}

// Free releases the build side and the expressions. Probers must be closed.
func (hj *HashJoin) Free() {
	ctr := &hj.ctr
	ctr.mu.Lock()
	if ctr.freed {
		ctr.mu.Unlock()
		return
	}
	ctr.freed = true
	ctr.mu.Unlock()

	if ctr.jm != nil {
		ctr.jm.Free()
		ctr.jm = nil
	}
	ctr.builder.Free(hj.proc)
	ctr.allRows = nil
	for _, expr := range hj.BuildKeys {
		expr.Free()
	}
	for _, expr := range hj.ProbeKeys {
		expr.Free()
	}
	if hj.Cond != nil {
		hj.Cond.Free()
	}
}

func checkSchema(ctx context.Context, side string, bat *batch.Batch, typs []types.Type) error {
	if len(bat.Vecs) != len(typs) {
		return moerr.NewInvalidInput(ctx, "%s batch has %d columns, expect %d", side, len(bat.Vecs), len(typs))
	}
	for i, vec := range bat.Vecs {
		if vec.GetType().Oid != typs[i].Oid {
			return moerr.NewInvalidInput(ctx, "%s column %d is %s, expect %s", side, i, vec.GetType(), typs[i])
		}
	}
	return nil
}
