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

package colexec

import (
	"testing"

	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func newTestBatch(t *testing.T, vecs ...*vector.Vector) *batch.Batch {
	bat, err := batch.NewWithVecs(vecs...)
	require.NoError(t, err)
	return bat
}

func TestColumnExecutor(t *testing.T) {
	i64 := types.T_int64.ToType()
	probe := newTestBatch(t, vector.NewVecWithData(i64, []int64{1, 2}, nil))
	build := newTestBatch(t, vector.NewVecWithData(types.T_varchar.ToType(), []string{"a", "b"}, nil))

	col := NewColumnExecutor(1, 0, types.T_varchar.ToType())
	vec, err := col.Eval(nil, []*batch.Batch{probe, build})
	require.NoError(t, err)
	require.Equal(t, "[a b]", vec.String())

	_, err = NewColumnExecutor(2, 0, i64).Eval(nil, []*batch.Batch{probe, build})
	require.Error(t, err)
	_, err = NewColumnExecutor(0, 3, i64).Eval(nil, []*batch.Batch{probe})
	require.Error(t, err)
	_, err = NewColumnExecutor(0, 0, types.T_int32.ToType()).Eval(nil, []*batch.Batch{probe})
	require.Error(t, err)
}

func TestCompareFunctions(t *testing.T) {
	i64 := types.T_int64.ToType()
	probe := newTestBatch(t, vector.NewVecWithData(i64, []int64{1, 2, 3}, []bool{false, false, true}))
	build := newTestBatch(t, vector.NewVecWithData(i64, []int64{2, 2, 2}, nil))

	tests := []struct {
		name string
		want string
	}{
		{EQUAL, "[false true null]"},
		{NOT_EQUAL, "[true false null]"},
		{LESS_THAN, "[true false null]"},
		{LESS_EQUAL, "[true true null]"},
		{GREAT_THAN, "[false false null]"},
		{GREAT_EQUAL, "[false true null]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, err := NewFunctionExecutor(tt.name, NewColumnExecutor(0, 0, i64), NewColumnExecutor(1, 0, i64))
			require.NoError(t, err)
			defer exec.Free()
			vec, err := exec.Eval(nil, []*batch.Batch{probe, build})
			require.NoError(t, err)
			require.Equal(t, tt.want, vec.String())
			require.Equal(t, types.T_bool, exec.ReturnType().Oid)
		})
	}

	_, err := NewFunctionExecutor(EQUAL, NewColumnExecutor(0, 0, i64), NewColumnExecutor(1, 0, types.T_varchar.ToType()))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	_, err = NewFunctionExecutor("like", NewColumnExecutor(0, 0, i64))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
	_, err = NewFunctionExecutor(LESS_THAN, NewConstExecutor(types.T_bool.ToType(), true), NewConstExecutor(types.T_bool.ToType(), false))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
}

func TestLogicFunctions(t *testing.T) {
	b := types.T_bool.ToType()
	// rows: (T,T) (T,F) (T,N) (F,N) (N,N)
	bat := newTestBatch(t,
		vector.NewVecWithData(b, []bool{true, true, true, false, false}, []bool{false, false, false, false, true}),
		vector.NewVecWithData(b, []bool{true, false, false, false, false}, []bool{false, false, true, true, true}))
	a, c := NewColumnExecutor(0, 0, b), NewColumnExecutor(0, 1, b)

	and, err := NewFunctionExecutor(AND, a, c)
	require.NoError(t, err)
	vec, err := and.Eval(nil, []*batch.Batch{bat})
	require.NoError(t, err)
	require.Equal(t, "[true false null false null]", vec.String())

	or, err := NewFunctionExecutor(OR, a, c)
	require.NoError(t, err)
	vec, err = or.Eval(nil, []*batch.Batch{bat})
	require.NoError(t, err)
	require.Equal(t, "[true true true null null]", vec.String())

	not, err := NewFunctionExecutor(NOT, a)
	require.NoError(t, err)
	vec, err = not.Eval(nil, []*batch.Batch{bat})
	require.NoError(t, err)
	require.Equal(t, "[false false false true null]", vec.String())

	isNull, err := NewFunctionExecutor(IS_NULL, c)
	require.NoError(t, err)
	vec, err = isNull.Eval(nil, []*batch.Batch{bat})
	require.NoError(t, err)
	require.Equal(t, "[false false true true true]", vec.String())

	_, err = NewFunctionExecutor(AND, a)
	require.Error(t, err)
}

func TestConstExecutor(t *testing.T) {
	bat := newTestBatch(t, vector.NewVecWithData(types.T_int32.ToType(), []int32{1, 2, 3}, nil))

	vec, err := EvalExpressionOnce(nil, NewConstExecutor(types.T_int32.ToType(), int32(2)), []*batch.Batch{bat})
	require.NoError(t, err)
	require.Equal(t, "[2 2 2]", vec.String())

	vec, err = NewConstExecutor(types.T_int32.ToType(), nil).Eval(nil, []*batch.Batch{bat})
	require.NoError(t, err)
	require.Equal(t, "[null null null]", vec.String())

	_, err = NewConstExecutor(types.T_int32.ToType(), "2").Eval(nil, []*batch.Batch{bat})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	gt, err := NewFunctionExecutor(GREAT_THAN, NewColumnExecutor(0, 0, types.T_int32.ToType()), NewConstExecutor(types.T_int32.ToType(), int32(1)))
	require.NoError(t, err)
	vec, err = gt.Eval(nil, []*batch.Batch{bat})
	require.NoError(t, err)
	require.Equal(t, "[false true true]", vec.String())
}
