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

package moerr

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMoErrCode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		code     uint16
		expected bool
	}{
		{name: "nil error is ok", err: nil, code: Ok, expected: true},
		{name: "nil error is not internal", err: nil, code: ErrInternal, expected: false},
		{name: "go error", err: errors.New("x"), code: ErrInternal, expected: false},
		{name: "single join", err: NewSingleJoinTooManyRows(ctx), code: ErrSingleJoinTooManyRows, expected: true},
		{name: "memory limit", err: NewMemoryLimitExceeded(ctx, "hash build", 2048, 1024), code: ErrMemoryLimitExceeded, expected: true},
		{name: "wrong code", err: NewInvalidState(ctx, "x"), code: ErrInvalidInput, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsMoErrCode(tt.err, tt.code))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	ctx := context.Background()

	err := NewMemoryLimitExceeded(ctx, "hash build", 3<<20, 1<<20)
	require.Equal(t, "hash build memory limit exceeded: want 3.0 MiB, limit 1.0 MiB", err.Error())
	require.Equal(t, ER_ENGINE_OUT_OF_MEMORY, err.MySQLCode())

	err = NewSingleJoinTooManyRows(ctx)
	require.Equal(t, "Subquery returns more than 1 row", err.Error())
	require.Equal(t, ER_SUBQUERY_NO_1_ROW, err.MySQLCode())
	require.Equal(t, "21000", err.SqlState())

	err = NewJoinKeyTypeMismatch(ctx, 0, "INT", "VARCHAR")
	require.Equal(t, "join key 0 type mismatch: build side INT, probe side VARCHAR", err.Error())

	require.Equal(t, "invalid input: bad 1", NewInvalidInput(ctx, "bad %d", 1).Error())
	require.Equal(t, "internal error: oops", NewInternalErrorNoCtx("oops").Display())
}

func TestConvertGoError(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, ConvertGoError(ctx, nil))

	orig := NewInvalidState(ctx, "x")
	require.Same(t, orig, ConvertGoError(ctx, orig))

	require.True(t, IsMoErrCode(ConvertGoError(ctx, context.Canceled), ErrQueryInterrupted))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, io.EOF), ErrInternal))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, errors.New("boom")), ErrInternal))
}

func TestConvertPanicError(t *testing.T) {
	ctx := context.Background()
	orig := NewOOM(ctx)
	require.Same(t, orig, ConvertPanicError(ctx, orig))
	require.True(t, IsMoErrCode(ConvertPanicError(ctx, "boom"), ErrInternal))
	require.True(t, GetOkExpectedEOB().Succeeded())
}
