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
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/lni/goutils/leaktest"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/common/mpool"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	mock_colexec "github.com/matrixorigin/mojoin/pkg/sql/colexec/mock_colexec"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
	"github.com/panjf2000/ants/v2"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"
)

// sliceSource serves bats, then failErr if set, then the end of input.
func sliceSource(bats []*batch.Batch, failErr error) Source {
	i := 0
	return func(ctx context.Context) (*batch.Batch, error) {
		if i < len(bats) {
			i++
			return bats[i-1], nil
		}
		return nil, failErr
	}
}

type collector struct {
	outs []*batch.Batch
}

func (c *collector) sink(bat *batch.Batch) error {
	c.outs = append(c.outs, bat)
	return nil
}

func TestRunMatchesNestedLoop(t *testing.T) {
	defer leaktest.AfterTest(t)()
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 10; round++ {
		build := randomRelation(r, 30)
		probe := randomRelation(r, 30)
		for _, jt := range propertyJoinTypes {
			for _, withCond := range []bool{false, true} {
				name := fmt.Sprintf("round %d %s cond=%v", round, jt, withCond)
				m := mpool.MustNewZero()
				var c collector
				stats, err := Run(context.Background(), newProc(m), newPropArg(t, jt, withCond, 4), 3,
					sliceSource(toBatches(t, build, 4), nil), sliceSource(toBatches(t, probe, 2), nil), c.sink)
				require.NoError(t, err, name)
				require.Equal(t, nestedLoopJoin(jt, withCond, probe, build), sortedRows(c.outs), name)
				require.Equal(t, int64(len(build)+len(probe)), stats.TotalInputRows, name)
				require.Equal(t, int64(0), m.CurrNB(), name)
			}
		}
	}
}

func TestRunDefaultWorkers(t *testing.T) {
	defer leaktest.AfterTest(t)()
	var c collector
	_, err := Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Inner, nil, 0), 0,
		sliceSource([]*batch.Batch{scenarioBuild(t)}, nil), sliceSource([]*batch.Batch{scenarioProbe(t)}, nil), c.sink)
	require.NoError(t, err)
	require.Equal(t, []string{"[1 1 x]", "[1 1 z]"}, sortedRows(c.outs))
}

func TestRunInputErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()
	broken := errors.New("input broken")
	probes := []*batch.Batch{scenarioProbe(t), scenarioProbe(t), scenarioProbe(t)}

	t.Run("build source", func(t *testing.T) {
		m := mpool.MustNewZero()
		var c collector
		_, err := Run(context.Background(), newProc(m), newArg(Left, nil, 0), 2,
			sliceSource([]*batch.Batch{scenarioBuild(t)}, broken), sliceSource(probes, nil), c.sink)
		require.Equal(t, broken, err)
		require.Equal(t, int64(0), m.CurrNB())
	})

	t.Run("probe source", func(t *testing.T) {
		var c collector
		_, err := Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Left, nil, 0), 2,
			sliceSource([]*batch.Batch{scenarioBuild(t)}, nil), sliceSource(probes, broken), c.sink)
		require.Equal(t, broken, err)
	})

	t.Run("sink", func(t *testing.T) {
		_, err := Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Left, nil, 0), 2,
			sliceSource([]*batch.Batch{scenarioBuild(t)}, nil), sliceSource(probes, nil),
			func(*batch.Batch) error { return broken })
		require.Equal(t, broken, err)
	})

	t.Run("memory limit", func(t *testing.T) {
		m := mpool.MustNew("run-limit", 64)
		defer mpool.DeleteMPool(m)
		var c collector
		_, err := Run(context.Background(), newProc(m), newArg(Inner, nil, 0), 2,
			sliceSource([]*batch.Batch{scenarioBuild(t), scenarioBuild(t)}, nil), sliceSource(probes, nil), c.sink)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrMemoryLimitExceeded))
		require.Equal(t, int64(0), m.CurrNB())
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var c collector
		_, err := Run(ctx, newProc(mpool.MustNewZero()), newArg(Inner, nil, 0), 2,
			sliceSource([]*batch.Batch{scenarioBuild(t)}, nil), sliceSource(probes, nil), c.sink)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrQueryInterrupted))
	})
}

func TestRunWorkerErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()
	probes := []*batch.Batch{scenarioProbe(t), newProbeBatch(t, []int64{2}, nil)}

	t.Run("single join violation", func(t *testing.T) {
		var c collector
		_, err := Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Single, nil, 0), 2,
			sliceSource([]*batch.Batch{scenarioBuild(t)}, nil), sliceSource(probes, nil), c.sink)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrSingleJoinTooManyRows))
	})

	t.Run("panic", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cond := mock_colexec.NewMockExpressionExecutor(ctrl)
		cond.EXPECT().ReturnType().Return(types.T_bool.ToType()).AnyTimes()
		cond.EXPECT().Eval(gomock.Any(), gomock.Any()).DoAndReturn(
			func(*process.Process, []*batch.Batch) (*vector.Vector, error) {
				panic("residual predicate crashed")
			}).MinTimes(1)
		cond.EXPECT().Free()

		var c collector
		_, err := Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Inner, cond, 0), 2,
			sliceSource([]*batch.Batch{scenarioBuild(t)}, nil), sliceSource(probes, nil), c.sink)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
		require.Contains(t, err.Error(), "residual predicate crashed")
	})
}

func TestRunWorkerPool(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var sizes []int
	stubs := gostub.Stub(&newWorkerPool, func(size int, panicHandler func(interface{})) (*ants.Pool, error) {
		sizes = append(sizes, size)
		if size > 8 {
			return nil, ants.ErrInvalidPoolExpiry
		}
		return ants.NewPool(size, ants.WithPanicHandler(panicHandler))
	})
	defer stubs.Reset()

	var c collector
	_, err := Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Inner, nil, 0), 4,
		sliceSource([]*batch.Batch{scenarioBuild(t)}, nil), sliceSource([]*batch.Batch{scenarioProbe(t)}, nil), c.sink)
	require.NoError(t, err)
	require.Equal(t, []string{"[1 1 x]", "[1 1 z]"}, sortedRows(c.outs))

	_, err = Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Inner, nil, 0), 16,
		sliceSource(nil, nil), sliceSource(nil, nil), c.sink)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	require.Equal(t, []int{4, 16}, sizes)
}

func TestRunOrderPerWorker(t *testing.T) {
	defer leaktest.AfterTest(t)()
	keys := make([]int64, 100)
	for i := range keys {
		keys[i] = int64(i)
	}
	build := newBuildBatch(t, keys, nil, make([]string, 100))
	var probes []*batch.Batch
	for i := 0; i < 10; i++ {
		probes = append(probes, newProbeBatch(t, keys[i*10:(i+1)*10], nil))
	}

	var c collector
	_, err := Run(context.Background(), newProc(mpool.MustNewZero()), newArg(Inner, nil, 3), 1,
		sliceSource([]*batch.Batch{build}, nil), sliceSource(probes, nil), c.sink)
	require.NoError(t, err)
	rows := rowStrings(c.outs)
	require.Len(t, rows, 100)
	require.True(t, sort.SliceIsSorted(rows, func(i, j int) bool {
		return keyOf(rows[i]) < keyOf(rows[j])
	}))
}

func keyOf(row string) int {
	var k int
	_, _ = fmt.Sscanf(row, "[%d", &k)
	return k
}
