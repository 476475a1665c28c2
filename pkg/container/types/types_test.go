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

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeLen(t *testing.T) {
	require.Equal(t, 1, T_bool.TypeLen())
	require.Equal(t, 2, T_uint16.TypeLen())
	require.Equal(t, 4, T_float32.TypeLen())
	require.Equal(t, 8, T_int64.TypeLen())
	require.Equal(t, 0, T_varchar.TypeLen())
	require.Panics(t, func() { T(99).TypeLen() })
}

func TestKeyCompatible(t *testing.T) {
	require.True(t, T_int64.ToType().KeyCompatible(T_int64.ToType()))
	require.True(t, T_char.ToType().KeyCompatible(New(T_varchar, 20)))
	require.False(t, T_int32.ToType().KeyCompatible(T_int64.ToType()))
	require.False(t, T_any.ToType().IsHashable())
	require.True(t, T_float64.ToType().IsHashable())
}

func TestString(t *testing.T) {
	for name, oid := range Types {
		typ := oid.ToType()
		require.NotContains(t, typ.String(), "unexpected", name)
		require.Equal(t, oid.IsString(), typ.IsVarlen())
	}
	require.Equal(t, "ANY", T_any.String())
	require.Contains(t, T(99).String(), "unexpected")
	require.True(t, T_uint8.IsInteger())
	require.True(t, T_float64.IsFloat())
}
