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

package vector

import (
	"testing"

	"github.com/matrixorigin/mojoin/pkg/container/nulls"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func TestAppendAndUnion(t *testing.T) {
	v := NewVecWithData(types.T_int64.ToType(), []int64{1, 2, 3}, []bool{false, true, false})
	require.Equal(t, 3, v.Length())
	require.True(t, v.IsNull(1))
	require.True(t, v.HasNull())
	require.Equal(t, "[1 null 3]", v.String())
	require.Equal(t, 24+nulls.Size(v.GetNulls()), v.Size())

	w := NewVec(types.T_int64.ToType())
	require.NoError(t, w.Union(v, []int64{2, 1, 0}))
	require.NoError(t, w.UnionNull())
	require.Equal(t, "[3 null 1 null]", w.String())
	require.Equal(t, []int64{3, 0, 1, 0}, MustFixedCol[int64](w))

	require.Error(t, Append(w, "x", false))
	require.Error(t, NewVec(types.T_varchar.ToType()).UnionOne(v, 0))
}

func TestStrings(t *testing.T) {
	v := NewVecWithData(types.T_varchar.ToType(), []string{"x", "yy", ""}, nil)
	require.Equal(t, []string{"x", "yy", ""}, MustStrCol(v))
	require.Equal(t, 3*16+3, v.Size())

	d := v.Dup()
	require.Equal(t, v.String(), d.String())
	require.True(t, Equal(v, 1, d, 1))
	require.False(t, Equal(v, 0, d, 1))

	c := NewVecWithData(types.T_char.ToType(), []string{"yy"}, nil)
	require.True(t, Equal(v, 1, c, 0))
}

func TestEqual(t *testing.T) {
	a := NewVecWithData(types.T_float64.ToType(), []float64{0, 1.5, 2}, []bool{false, false, true})
	b := NewVecWithData(types.T_float64.ToType(), []float64{1.5, 2}, nil)
	require.True(t, Equal(a, 1, b, 0))
	require.False(t, Equal(a, 0, b, 0))
	// NULL never equals anything, NULL included
	require.False(t, Equal(a, 2, b, 1))
	require.False(t, Equal(a, 2, a, 2))

	i32 := NewVecWithData(types.T_int32.ToType(), []int32{2}, nil)
	require.False(t, Equal(b, 1, i32, 0))
}

func TestConstNull(t *testing.T) {
	v := NewConstNull(types.T_bool.ToType(), 4)
	require.Equal(t, 4, v.Length())
	for i := 0; i < 4; i++ {
		require.Nil(t, v.GetValue(i))
	}
}
