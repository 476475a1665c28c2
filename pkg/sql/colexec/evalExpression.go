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
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
)

// ExpressionExecutor
// can evaluate the result from vectors directly.
//
// batches[i] is the relation with RelPos i. A join evaluates its keys with a
// single relation and its residual condition with {probe rows, build rows}.
// Implementations must allow concurrent Eval calls: the results are never
// reused between calls, and callers must not modify them.
type ExpressionExecutor interface {
	Eval(proc *process.Process, batches []*batch.Batch) (*vector.Vector, error)

	// ReturnType is the type of every vector returned by Eval.
	ReturnType() types.Type

	// Free should release all memory of executor.
	// it will be called after query has done.
	Free()
}

// EvalFn computes length rows of result from the parameter vectors.
type EvalFn func(params []*vector.Vector, result *vector.Vector, length int) error

type FixedVectorExpressionExecutor struct {
	typ types.Type
	val any
}

type FunctionExpressionExecutor struct {
	name              string
	typ               types.Type
	evalFn            EvalFn
	parameterExecutor []ExpressionExecutor
}

type ColumnExpressionExecutor struct {
	relIndex int
	colIndex int
	typ      types.Type
}

var _ ExpressionExecutor = new(FixedVectorExpressionExecutor)
var _ ExpressionExecutor = new(FunctionExpressionExecutor)
var _ ExpressionExecutor = new(ColumnExpressionExecutor)

// NewColumnExecutor reads column colIndex of relation relIndex.
func NewColumnExecutor(relIndex, colIndex int, typ types.Type) *ColumnExpressionExecutor {
	return &ColumnExpressionExecutor{
		relIndex: relIndex,
		colIndex: colIndex,
		typ:      typ,
	}
}

// NewConstExecutor repeats val, or NULL when val is nil, once per input row.
func NewConstExecutor(typ types.Type, val any) *FixedVectorExpressionExecutor {
	return &FixedVectorExpressionExecutor{
		typ: typ,
		val: val,
	}
}

// NewFunctionExecutor resolves the builtin called name against the argument types.
func NewFunctionExecutor(name string, args ...ExpressionExecutor) (*FunctionExpressionExecutor, error) {
	argTypes := make([]types.Type, len(args))
	for i, arg := range args {
		argTypes[i] = arg.ReturnType()
	}
	overload, err := getFunction(name, argTypes)
	if err != nil {
		return nil, err
	}
	return &FunctionExpressionExecutor{
		name:              name,
		typ:               overload.retType,
		evalFn:            overload.fn,
		parameterExecutor: args,
	}, nil
}

func (expr *ColumnExpressionExecutor) Eval(_ *process.Process, batches []*batch.Batch) (*vector.Vector, error) {
	if expr.relIndex >= len(batches) || batches[expr.relIndex] == nil {
		return nil, moerr.NewInternalErrorNoCtx("relation %d is not present", expr.relIndex)
	}
	bat := batches[expr.relIndex]
	if expr.colIndex >= len(bat.Vecs) {
		return nil, moerr.NewInternalErrorNoCtx("column %d out of range, relation %d has %d columns",
			expr.colIndex, expr.relIndex, len(bat.Vecs))
	}
	vec := bat.Vecs[expr.colIndex]
	if vec.GetType().Oid != expr.typ.Oid {
		return nil, moerr.NewInternalErrorNoCtx("column %d of relation %d is %s, expect %s",
			expr.colIndex, expr.relIndex, vec.GetType(), expr.typ)
	}
	return vec, nil
}

func (expr *ColumnExpressionExecutor) ReturnType() types.Type {
	return expr.typ
}

func (expr *ColumnExpressionExecutor) Free() {}

func (expr *FixedVectorExpressionExecutor) Eval(_ *process.Process, batches []*batch.Batch) (*vector.Vector, error) {
	length := 0
	if len(batches) > 0 && batches[0] != nil {
		length = batches[0].RowCount()
	}
	if expr.val == nil {
		return vector.NewConstNull(expr.typ, length), nil
	}
	vec := vector.NewVecWithCap(expr.typ, length)
	tmp, err := constVector(expr.typ, expr.val)
	if err != nil {
		return nil, err
	}
	for i := 0; i < length; i++ {
		if err = vec.UnionOne(tmp, 0); err != nil {
			return nil, err
		}
	}
	return vec, nil
}

func (expr *FixedVectorExpressionExecutor) ReturnType() types.Type {
	return expr.typ
}

func (expr *FixedVectorExpressionExecutor) Free() {}

func (expr *FunctionExpressionExecutor) Eval(proc *process.Process, batches []*batch.Batch) (*vector.Vector, error) {
	params := make([]*vector.Vector, len(expr.parameterExecutor))
	length := -1
	for i := range expr.parameterExecutor {
		vec, err := expr.parameterExecutor[i].Eval(proc, batches)
		if err != nil {
			return nil, err
		}
		if length >= 0 && vec.Length() != length {
			return nil, moerr.NewInternalErrorNoCtx("%s: parameter %d has %d rows, expect %d",
				expr.name, i, vec.Length(), length)
		}
		length = vec.Length()
		params[i] = vec
	}
	if length < 0 {
		length = 0
	}
	result := vector.NewVecWithCap(expr.typ, length)
	if err := expr.evalFn(params, result, length); err != nil {
		return nil, err
	}
	return result, nil
}

func (expr *FunctionExpressionExecutor) ReturnType() types.Type {
	return expr.typ
}

func (expr *FunctionExpressionExecutor) Free() {
	for _, p := range expr.parameterExecutor {
		if p != nil {
			p.Free()
		}
	}
	expr.parameterExecutor = nil
}

// EvalExpressionOnce evaluates executor and frees it.
func EvalExpressionOnce(proc *process.Process, executor ExpressionExecutor, batches []*batch.Batch) (*vector.Vector, error) {
	defer executor.Free()
	return executor.Eval(proc, batches)
}

func constVector(typ types.Type, val any) (*vector.Vector, error) {
	vec := vector.NewVecWithCap(typ, 1)
	var err error
	switch typ.Oid {
	case types.T_bool:
		err = appendConst[bool](vec, val)
	case types.T_int8:
		err = appendConst[int8](vec, val)
	case types.T_int16:
		err = appendConst[int16](vec, val)
	case types.T_int32:
		err = appendConst[int32](vec, val)
	case types.T_int64:
		err = appendConst[int64](vec, val)
	case types.T_uint8:
		err = appendConst[uint8](vec, val)
	case types.T_uint16:
		err = appendConst[uint16](vec, val)
	case types.T_uint32:
		err = appendConst[uint32](vec, val)
	case types.T_uint64:
		err = appendConst[uint64](vec, val)
	case types.T_float32:
		err = appendConst[float32](vec, val)
	case types.T_float64:
		err = appendConst[float64](vec, val)
	case types.T_char, types.T_varchar:
		err = appendConst[string](vec, val)
	default:
		err = moerr.NewNotSupported(moerr.Context(), "constant of type %s", typ)
	}
	return vec, err
}

func appendConst[T any](vec *vector.Vector, val any) error {
	v, ok := val.(T)
	if !ok {
		return moerr.NewInvalidInputNoCtx("constant %v is not a %s", val, vec.GetType())
	}
	return vector.Append(vec, v, false)
}
