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
	"context"
	"runtime"

	"github.com/matrixorigin/mojoin/pkg/common/concurrent"
	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
)

// reconcileChunksPerThread keeps small tables on one thread.
const reconcileChunksPerThread = 4

// reconcile scans the build markers once every prober is drained. Right and
// full joins null extend the unmatched build rows, right anti joins emit them,
// right semi joins emit the matched ones. Chunk ranges are scanned in
// parallel and rows come out in chunk order.
func (hj *HashJoin) reconcile(ctx context.Context) ([]*batch.Batch, error) {
	var want bool
	switch hj.JoinType {
	case Right, Full, RightAnti:
		want = false
	case RightSemi:
		want = true
	default:
		return nil, nil
	}

	jm := hj.ctr.jm
	nchunks := jm.ChunkCount()
	threads := (nchunks + reconcileChunksPerThread - 1) / reconcileChunksPerThread
	if threads == 0 {
		return nil, nil
	}
	exec := concurrent.NewThreadPoolExecutor(min(threads, runtime.NumCPU()))
	parts := make([][]*batch.Batch, exec.Threads())
	err := exec.Execute(ctx, nchunks, func(ctx context.Context, id, start, end int) error {
		asm := newAssembler(hj.JoinType, hj.ProbeTypes, hj.BuildTypes, hj.MaxBatchSize, jm)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return moerr.ConvertGoError(ctx, err)
			}
			rows := jm.Chunk(i).RowCount()
			for j := 0; j < rows; j++ {
				ptr := hashmap.RowPtr{ChunkIndex: uint32(i), RowIndex: uint32(j)}
				if jm.IsMarked(ptr) != want {
					continue
				}
				if err := asm.appendBuild(ptr); err != nil {
					return err
				}
			}
		}
		parts[id] = asm.take()
		return nil
	})
	if err != nil {
		return nil, err
	}
	var outs []*batch.Batch
	for _, part := range parts {
		outs = append(outs, part...)
	}
	return outs, nil
}
