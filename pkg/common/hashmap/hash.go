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

package hashmap

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
)

// fillKeys encodes rows [start, start+count) of vecs into one hash per row.
// zValues[i] is 0 when any key column of the row is NULL, 1 otherwise.
func fillKeys(buf []byte, vecs []*vector.Vector, start, count int, hashes []uint64, zValues []int64) ([]byte, error) {
	if count > len(hashes) {
		return buf, moerr.NewInternalErrorNoCtx("hash %d rows at once, limit %d", count, len(hashes))
	}
	for i := 0; i < count; i++ {
		row := start + i
		buf = buf[:0]
		zValues[i] = 1
		for _, vec := range vecs {
			if vec.IsNull(uint64(row)) {
				zValues[i] = 0
				break
			}
			var err error
			if buf, err = encodeKey(buf, vec, row); err != nil {
				return buf, err
			}
		}
		if zValues[i] == 0 {
			hashes[i] = 0
			continue
		}
		hashes[i] = xxhash.Sum64(buf)
	}
	return buf, nil
}

// encodeKey appends the canonical bytes of vec[row]. Values comparing equal
// encode equally: -0 and +0 share one encoding, and char/varchar both use
// a length prefix so multi-column keys cannot alias.
func encodeKey(buf []byte, vec *vector.Vector, row int) ([]byte, error) {
	switch col := vec.Col().(type) {
	case []bool:
		if col[row] {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case []int8:
		return append(buf, byte(col[row])), nil
	case []uint8:
		return append(buf, col[row]), nil
	case []int16:
		return binary.LittleEndian.AppendUint16(buf, uint16(col[row])), nil
	case []uint16:
		return binary.LittleEndian.AppendUint16(buf, col[row]), nil
	case []int32:
		return binary.LittleEndian.AppendUint32(buf, uint32(col[row])), nil
	case []uint32:
		return binary.LittleEndian.AppendUint32(buf, col[row]), nil
	case []int64:
		return binary.LittleEndian.AppendUint64(buf, uint64(col[row])), nil
	case []uint64:
		return binary.LittleEndian.AppendUint64(buf, col[row]), nil
	case []float32:
		v := col[row]
		if v == 0 {
			v = 0
		}
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v)), nil
	case []float64:
		v := col[row]
		if v == 0 {
			v = 0
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v)), nil
	case []string:
		buf = binary.AppendUvarint(buf, uint64(len(col[row])))
		return append(buf, col[row]...), nil
	}
	return buf, moerr.NewNotSupported(moerr.Context(), "hash join key of type %s", vec.GetType())
}

// Insert indexes rows [start, start+count) of the chunk whose key columns are vecs.
// NULL keys are skipped. It returns the number of rows indexed.
func (itr *Iterator) Insert(chunkIdx, start, count int, vecs []*vector.Vector) (int, error) {
	jm := itr.jm
	if jm.sealed {
		return 0, moerr.NewInvalidStateNoCtx("insert into a sealed join map")
	}
	var err error
	if itr.buf, err = fillKeys(itr.buf, vecs, start, count, itr.hashes, itr.zValues); err != nil {
		return 0, err
	}
	n := 0
	for i := 0; i < count; i++ {
		if itr.zValues[i] == 0 {
			jm.hasNullKey = true
			continue
		}
		ptr := RowPtr{ChunkIndex: uint32(chunkIdx), RowIndex: uint32(start + i)}
		jm.index[itr.hashes[i]] = append(jm.index[itr.hashes[i]], ptr)
		n++
	}
	jm.entries += int64(n)
	return n, nil
}

// Find looks up rows [start, start+count) of vecs. cands[i] lists the build rows
// whose key hashes like row start+i, to be verified with KeyEqual. zvs[i] is 0
// for a NULL key, whose cands[i] is always empty. Both slices are reused by the
// next call.
func (itr *Iterator) Find(start, count int, vecs []*vector.Vector) (cands [][]RowPtr, zvs []int64, err error) {
	if itr.buf, err = fillKeys(itr.buf, vecs, start, count, itr.hashes, itr.zValues); err != nil {
		return nil, nil, err
	}
	for i := 0; i < count; i++ {
		if itr.zValues[i] == 0 {
			itr.cands[i] = nil
			continue
		}
		itr.cands[i] = itr.jm.index[itr.hashes[i]]
	}
	return itr.cands[:count], itr.zValues[:count], nil
}
