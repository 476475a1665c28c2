// Copyright 2022 Matrix Origin
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

package process

import (
	"context"
	"testing"
	"time"

	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	"github.com/matrixorigin/mojoin/pkg/logutil"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	proc, err := NewFromLimitation(context.Background(), "q1", Limitation{Size: 1 << 20, BatchRows: 8192})
	require.NoError(t, err)
	require.Equal(t, "q1", proc.QueryId())
	require.Equal(t, "q1", logutil.QueryID(proc.Ctx))
	require.Equal(t, int64(1<<20), proc.Mp().Cap())
	proc.Free()
	require.Error(t, proc.Ctx.Err())

	_, err = NewFromLimitation(context.Background(), "bad", Limitation{Size: -1})
	require.Error(t, err)
}

func TestAnalyzer(t *testing.T) {
	bat, err := batch.NewWithVecs(vector.NewVecWithData(types.T_int32.ToType(), []int32{1, 2, 3}, nil))
	require.NoError(t, err)

	a := NewAnalyzer("hash join")
	a.Start()
	a.Input(bat)
	a.Output(bat)
	a.Output(nil)
	a.Alloc(100)
	a.WaitStop(time.Now())
	a.Stop()

	st := a.GetOpStats()
	require.Equal(t, 1, st.CallCount)
	require.Equal(t, int64(3), st.TotalInputRows)
	require.Equal(t, int64(3), st.TotalOutputRows)
	require.Equal(t, int64(1), st.TotalOutputBlocks)
	require.Equal(t, int64(100), st.TotalMemorySize)

	total := NewOperatorStats("total")
	total.Merge(st)
	total.Merge(st)
	require.Equal(t, int64(6), total.TotalInputRows)
	require.Contains(t, total.String(), "InRows:6")

	a.Reset()
	require.Equal(t, "hash join", a.GetOpStats().OperatorName)
	require.Equal(t, int64(0), a.GetOpStats().TotalInputRows)
}
