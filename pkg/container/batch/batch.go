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

package batch

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
)

var EmptyBatch = &Batch{rowCount: 0}

func New(attrs []string) *Batch {
	return &Batch{
		Attrs:    attrs,
		Vecs:     make([]*vector.Vector, len(attrs)),
		rowCount: 0,
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Vecs:     make([]*vector.Vector, n),
		rowCount: 0,
	}
}

// NewWithSchema returns an empty batch with one vector per type, each able to hold capacity rows.
func NewWithSchema(typs []types.Type, capacity int) *Batch {
	bat := NewWithSize(len(typs))
	for i, typ := range typs {
		bat.Vecs[i] = vector.NewVecWithCap(typ, capacity)
	}
	return bat
}

// NewWithVecs wraps vecs, which must share one length, into a batch.
func NewWithVecs(vecs ...*vector.Vector) (*Batch, error) {
	bat := NewWithSize(len(vecs))
	copy(bat.Vecs, vecs)
	for i, vec := range vecs {
		if i == 0 {
			bat.rowCount = vec.Length()
			continue
		}
		if vec.Length() != bat.rowCount {
			return nil, moerr.NewInvalidInputNoCtx("column %d has %d rows, expect %d", i, vec.Length(), bat.rowCount)
		}
	}
	return bat, nil
}

func (bat *Batch) Size() int {
	var size int

	for _, vec := range bat.Vecs {
		size += vec.Size()
	}
	return size
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

func (bat *Batch) SetRowCount(rowCount int) {
	bat.rowCount = rowCount
}

func (bat *Batch) AddRowCount(rowCount int) {
	bat.rowCount += rowCount
}

func (bat *Batch) IsEmpty() bool {
	return bat.rowCount == 0
}

// Types returns the column types of bat.
func (bat *Batch) Types() []types.Type {
	typs := make([]types.Type, len(bat.Vecs))
	for i, vec := range bat.Vecs {
		typs[i] = *vec.GetType()
	}
	return typs
}

// Row returns row i boxed, NULLs as nil.
func (bat *Batch) Row(i int) []any {
	row := make([]any, len(bat.Vecs))
	for j, vec := range bat.Vecs {
		row[j] = vec.GetValue(i)
	}
	return row
}

func (bat *Batch) Clean() {
	if bat == EmptyBatch {
		return
	}
	bat.Vecs = nil
	bat.rowCount = 0
}

func (bat *Batch) String() string {
	var buf bytes.Buffer

	for i, vec := range bat.Vecs {
		buf.WriteString(fmt.Sprintf("%d : %s\n", i, vec.String()))
	}
	return buf.String()
}
