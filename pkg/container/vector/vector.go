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
	"bytes"
	"fmt"

	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/nulls"
	"github.com/matrixorigin/mojoin/pkg/container/types"
)

// Vector represent a column
type Vector struct {
	// type represent the type of column
	typ types.Type
	nsp *nulls.Nulls // nulls list

	// []T for fixed size types, []string for char/varchar
	col any

	// bytes held by string values
	area   int
	length int
}

func NewVec(typ types.Type) *Vector {
	return NewVecWithCap(typ, 0)
}

// NewVecWithCap returns an empty vector whose storage can hold n rows without growing.
func NewVecWithCap(typ types.Type, n int) *Vector {
	v := &Vector{
		typ: typ,
		nsp: &nulls.Nulls{},
	}
	switch typ.Oid {
	case types.T_bool:
		v.col = make([]bool, 0, n)
	case types.T_int8:
		v.col = make([]int8, 0, n)
	case types.T_int16:
		v.col = make([]int16, 0, n)
	case types.T_int32:
		v.col = make([]int32, 0, n)
	case types.T_int64:
		v.col = make([]int64, 0, n)
	case types.T_uint8:
		v.col = make([]uint8, 0, n)
	case types.T_uint16:
		v.col = make([]uint16, 0, n)
	case types.T_uint32:
		v.col = make([]uint32, 0, n)
	case types.T_uint64:
		v.col = make([]uint64, 0, n)
	case types.T_float32:
		v.col = make([]float32, 0, n)
	case types.T_float64:
		v.col = make([]float64, 0, n)
	case types.T_char, types.T_varchar:
		v.col = make([]string, 0, n)
	default:
		v.col = make([]any, 0, n)
	}
	return v
}

// NewConstNull returns a vector of length rows that are all NULL.
func NewConstNull(typ types.Type, length int) *Vector {
	v := NewVecWithCap(typ, length)
	for i := 0; i < length; i++ {
		_ = v.UnionNull()
	}
	return v
}

func (v *Vector) Length() int {
	return v.length
}

// Size of data, only meaningful for (approximate) memory accounting.
func (v *Vector) Size() int {
	if v.typ.IsVarlen() {
		return v.length*16 + v.area + nulls.Size(v.nsp)
	}
	return v.length*v.typ.TypeSize() + nulls.Size(v.nsp)
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	v.nsp = nsp
}

func (v *Vector) IsNull(i uint64) bool {
	return nulls.Contains(v.nsp, i)
}

// HasNull reports whether any row of v is NULL.
func (v *Vector) HasNull() bool {
	return nulls.Any(v.nsp)
}

// Col returns the underlying storage, []T or []string.
func (v *Vector) Col() any {
	return v.col
}

func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	return v.col.([]T)
}

func MustStrCol(v *Vector) []string {
	return v.col.([]string)
}

// GetValue returns row i boxed, nil when the row is NULL.
func (v *Vector) GetValue(i int) any {
	if v.IsNull(uint64(i)) {
		return nil
	}
	switch col := v.col.(type) {
	case []bool:
		return col[i]
	case []int8:
		return col[i]
	case []int16:
		return col[i]
	case []int32:
		return col[i]
	case []int64:
		return col[i]
	case []uint8:
		return col[i]
	case []uint16:
		return col[i]
	case []uint32:
		return col[i]
	case []uint64:
		return col[i]
	case []float32:
		return col[i]
	case []float64:
		return col[i]
	case []string:
		return col[i]
	case []any:
		return col[i]
	}
	panic(moerr.NewInternalErrorNoCtx("unexpected vector storage %T", v.col))
}

// Append adds one value, or a NULL when isNull is set.
func Append[T any](v *Vector, val T, isNull bool) error {
	col, ok := v.col.([]T)
	if !ok {
		return moerr.NewInternalErrorNoCtx("append %T to %s vector", val, v.typ)
	}
	if isNull {
		nulls.Add(v.nsp, uint64(v.length))
	}
	v.col = append(col, val)
	v.length++
	if s, ok := any(val).(string); ok && !isNull {
		v.area += len(s)
	}
	return nil
}

func AppendList[T any](v *Vector, vals []T, isNulls []bool) error {
	for i, val := range vals {
		isNull := len(isNulls) > 0 && isNulls[i]
		if err := Append(v, val, isNull); err != nil {
			return err
		}
	}
	return nil
}

// NewVecWithData builds a vector holding vals, row i is NULL when isNulls[i] is set.
func NewVecWithData[T any](typ types.Type, vals []T, isNulls []bool) *Vector {
	v := NewVecWithCap(typ, len(vals))
	if err := AppendList(v, vals, isNulls); err != nil {
		panic(err)
	}
	return v
}

// UnionOne appends row sel of w to v.
func (v *Vector) UnionOne(w *Vector, sel int64) error {
	if w.IsNull(uint64(sel)) {
		return v.UnionNull()
	}
	switch v.typ.Oid {
	case types.T_bool:
		return unionOne[bool](v, w, sel)
	case types.T_int8:
		return unionOne[int8](v, w, sel)
	case types.T_int16:
		return unionOne[int16](v, w, sel)
	case types.T_int32:
		return unionOne[int32](v, w, sel)
	case types.T_int64:
		return unionOne[int64](v, w, sel)
	case types.T_uint8:
		return unionOne[uint8](v, w, sel)
	case types.T_uint16:
		return unionOne[uint16](v, w, sel)
	case types.T_uint32:
		return unionOne[uint32](v, w, sel)
	case types.T_uint64:
		return unionOne[uint64](v, w, sel)
	case types.T_float32:
		return unionOne[float32](v, w, sel)
	case types.T_float64:
		return unionOne[float64](v, w, sel)
	case types.T_char, types.T_varchar:
		return unionOne[string](v, w, sel)
	default:
		return unionOne[any](v, w, sel)
	}
}

func unionOne[T any](v, w *Vector, sel int64) error {
	ws, ok := w.col.([]T)
	if !ok {
		return moerr.NewInternalErrorNoCtx("union %s vector into %s vector", w.typ, v.typ)
	}
	return Append(v, ws[sel], false)
}

// Union appends the rows sels of w to v.
func (v *Vector) Union(w *Vector, sels []int64) error {
	for _, sel := range sels {
		if err := v.UnionOne(w, sel); err != nil {
			return err
		}
	}
	return nil
}

// UnionNull appends a NULL.
func (v *Vector) UnionNull() error {
	switch col := v.col.(type) {
	case []bool:
		v.col = append(col, false)
	case []int8:
		v.col = append(col, 0)
	case []int16:
		v.col = append(col, 0)
	case []int32:
		v.col = append(col, 0)
	case []int64:
		v.col = append(col, 0)
	case []uint8:
		v.col = append(col, 0)
	case []uint16:
		v.col = append(col, 0)
	case []uint32:
		v.col = append(col, 0)
	case []uint64:
		v.col = append(col, 0)
	case []float32:
		v.col = append(col, 0)
	case []float64:
		v.col = append(col, 0)
	case []string:
		v.col = append(col, "")
	case []any:
		v.col = append(col, nil)
	default:
		return moerr.NewInternalErrorNoCtx("unexpected vector storage %T", v.col)
	}
	nulls.Add(v.nsp, uint64(v.length))
	v.length++
	return nil
}

// Dup returns a deep copy of v.
func (v *Vector) Dup() *Vector {
	w := NewVecWithCap(v.typ, v.length)
	for i := 0; i < v.length; i++ {
		if err := w.UnionOne(v, int64(i)); err != nil {
			panic(err)
		}
	}
	return w
}

// Equal reports whether a[i] and b[j] hold the same non-null value.
// Both vectors must carry key compatible types.
func Equal(a *Vector, i int, b *Vector, j int) bool {
	if a.IsNull(uint64(i)) || b.IsNull(uint64(j)) {
		return false
	}
	switch ac := a.col.(type) {
	case []bool:
		return equalAt(ac, i, b.col, j)
	case []int8:
		return equalAt(ac, i, b.col, j)
	case []int16:
		return equalAt(ac, i, b.col, j)
	case []int32:
		return equalAt(ac, i, b.col, j)
	case []int64:
		return equalAt(ac, i, b.col, j)
	case []uint8:
		return equalAt(ac, i, b.col, j)
	case []uint16:
		return equalAt(ac, i, b.col, j)
	case []uint32:
		return equalAt(ac, i, b.col, j)
	case []uint64:
		return equalAt(ac, i, b.col, j)
	case []float32:
		return equalAt(ac, i, b.col, j)
	case []float64:
		return equalAt(ac, i, b.col, j)
	case []string:
		return equalAt(ac, i, b.col, j)
	}
	return false
}

func equalAt[T comparable](ac []T, i int, b any, j int) bool {
	bc, ok := b.([]T)
	if !ok {
		return false
	}
	return ac[i] == bc[j]
}

func (v *Vector) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < v.length; i++ {
		if i > 0 {
			buf.WriteByte(' ')
		}
		if val := v.GetValue(i); val == nil {
			buf.WriteString("null")
		} else {
			fmt.Fprintf(&buf, "%v", val)
		}
	}
	buf.WriteByte(']')
	return buf.String()
}
