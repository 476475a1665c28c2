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
	"context"

	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
)

// builtin function names
const (
	EQUAL       = "="
	NOT_EQUAL   = "<>"
	LESS_THAN   = "<"
	LESS_EQUAL  = "<="
	GREAT_THAN  = ">"
	GREAT_EQUAL = ">="
	AND         = "and"
	OR          = "or"
	NOT         = "not"
	IS_NULL     = "isnull"
	IS_NOT_NULL = "isnotnull"
)

type overload struct {
	retType types.Type
	fn      EvalFn
}

var boolType = types.T_bool.ToType()

func getFunction(name string, args []types.Type) (overload, error) {
	ctx := context.TODO()
	switch name {
	case EQUAL, NOT_EQUAL, LESS_THAN, LESS_EQUAL, GREAT_THAN, GREAT_EQUAL:
		if len(args) != 2 {
			return overload{}, moerr.NewInvalidInput(ctx, "function %s needs 2 arguments, got %d", name, len(args))
		}
		if !args[0].KeyCompatible(args[1]) {
			return overload{}, moerr.NewInvalidInput(ctx, "function %s cannot compare %s with %s", name, args[0], args[1])
		}
		fn, err := compareFn(name, args[0])
		if err != nil {
			return overload{}, err
		}
		return overload{retType: boolType, fn: fn}, nil
	case AND, OR:
		if len(args) != 2 || args[0].Oid != types.T_bool || args[1].Oid != types.T_bool {
			return overload{}, moerr.NewInvalidInput(ctx, "function %s needs 2 bool arguments", name)
		}
		if name == AND {
			return overload{retType: boolType, fn: andFn}, nil
		}
		return overload{retType: boolType, fn: orFn}, nil
	case NOT:
		if len(args) != 1 || args[0].Oid != types.T_bool {
			return overload{}, moerr.NewInvalidInput(ctx, "function %s needs 1 bool argument", name)
		}
		return overload{retType: boolType, fn: notFn}, nil
	case IS_NULL, IS_NOT_NULL:
		if len(args) != 1 {
			return overload{}, moerr.NewInvalidInput(ctx, "function %s needs 1 argument", name)
		}
		want := name == IS_NULL
		return overload{retType: boolType, fn: func(params []*vector.Vector, result *vector.Vector, length int) error {
			for i := 0; i < length; i++ {
				if err := vector.Append(result, params[0].IsNull(uint64(i)) == want, false); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	}
	return overload{}, moerr.NewNotSupported(ctx, "function %s", name)
}

func compareFn(name string, typ types.Type) (EvalFn, error) {
	switch typ.Oid {
	case types.T_bool:
		switch name {
		case EQUAL:
			return compareWith(func(a, b bool) bool { return a == b }), nil
		case NOT_EQUAL:
			return compareWith(func(a, b bool) bool { return a != b }), nil
		}
		return nil, moerr.NewNotSupported(context.TODO(), "function %s on %s", name, typ)
	case types.T_int8:
		return orderedCompare[int8](name), nil
	case types.T_int16:
		return orderedCompare[int16](name), nil
	case types.T_int32:
		return orderedCompare[int32](name), nil
	case types.T_int64:
		return orderedCompare[int64](name), nil
	case types.T_uint8:
		return orderedCompare[uint8](name), nil
	case types.T_uint16:
		return orderedCompare[uint16](name), nil
	case types.T_uint32:
		return orderedCompare[uint32](name), nil
	case types.T_uint64:
		return orderedCompare[uint64](name), nil
	case types.T_float32:
		return orderedCompare[float32](name), nil
	case types.T_float64:
		return orderedCompare[float64](name), nil
	case types.T_char, types.T_varchar:
		return orderedCompare[string](name), nil
	}
	return nil, moerr.NewNotSupported(context.TODO(), "function %s on %s", name, typ)
}

func orderedCompare[T types.OrderedT](name string) EvalFn {
	switch name {
	case EQUAL:
		return compareWith(func(a, b T) bool { return a == b })
	case NOT_EQUAL:
		return compareWith(func(a, b T) bool { return a != b })
	case LESS_THAN:
		return compareWith(func(a, b T) bool { return a < b })
	case LESS_EQUAL:
		return compareWith(func(a, b T) bool { return a <= b })
	case GREAT_THAN:
		return compareWith(func(a, b T) bool { return a > b })
	default:
		return compareWith(func(a, b T) bool { return a >= b })
	}
}

// compareWith applies op row by row, a NULL on either side gives NULL.
func compareWith[T comparable](op func(a, b T) bool) EvalFn {
	return func(params []*vector.Vector, result *vector.Vector, length int) error {
		a, ok1 := params[0].Col().([]T)
		b, ok2 := params[1].Col().([]T)
		if !ok1 || !ok2 {
			return moerr.NewInternalErrorNoCtx("compare %s with %s", params[0].GetType(), params[1].GetType())
		}
		for i := 0; i < length; i++ {
			if params[0].IsNull(uint64(i)) || params[1].IsNull(uint64(i)) {
				if err := result.UnionNull(); err != nil {
					return err
				}
				continue
			}
			if err := vector.Append(result, op(a[i], b[i]), false); err != nil {
				return err
			}
		}
		return nil
	}
}

// three valued logic
func andFn(params []*vector.Vector, result *vector.Vector, length int) error {
	a := vector.MustFixedCol[bool](params[0])
	b := vector.MustFixedCol[bool](params[1])
	for i := 0; i < length; i++ {
		an, bn := params[0].IsNull(uint64(i)), params[1].IsNull(uint64(i))
		var err error
		switch {
		case (!an && !a[i]) || (!bn && !b[i]):
			err = vector.Append(result, false, false)
		case an || bn:
			err = result.UnionNull()
		default:
			err = vector.Append(result, true, false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func orFn(params []*vector.Vector, result *vector.Vector, length int) error {
	a := vector.MustFixedCol[bool](params[0])
	b := vector.MustFixedCol[bool](params[1])
	for i := 0; i < length; i++ {
		an, bn := params[0].IsNull(uint64(i)), params[1].IsNull(uint64(i))
		var err error
		switch {
		case (!an && a[i]) || (!bn && b[i]):
			err = vector.Append(result, true, false)
		case an || bn:
			err = result.UnionNull()
		default:
			err = vector.Append(result, false, false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func notFn(params []*vector.Vector, result *vector.Vector, length int) error {
	a := vector.MustFixedCol[bool](params[0])
	for i := 0; i < length; i++ {
		var err error
		if params[0].IsNull(uint64(i)) {
			err = result.UnionNull()
		} else {
			err = vector.Append(result, !a[i], false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
