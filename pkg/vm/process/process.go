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

	"github.com/matrixorigin/mojoin/pkg/common/mpool"
	"github.com/matrixorigin/mojoin/pkg/logutil"
)

// New creates a new Process.
// A process stores the execution context.
func New(ctx context.Context, id string, lim Limitation, m *mpool.MPool) *Process {
	proc := &Process{
		Id:  id,
		Lim: lim,
		mp:  m,
	}
	proc.Ctx, proc.Cancel = context.WithCancel(logutil.WithQueryID(ctx, id))
	return proc
}

// NewFromLimitation creates a process whose memory pool is capped by lim.Size.
func NewFromLimitation(ctx context.Context, id string, lim Limitation) (*Process, error) {
	m, err := mpool.NewMPool(id, lim.Size)
	if err != nil {
		return nil, err
	}
	return New(ctx, id, lim, m), nil
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.GetMPool()
}

func (proc *Process) GetMPool() *mpool.MPool {
	return proc.mp
}

func (proc *Process) QueryId() string {
	return proc.Id
}

// Free releases the process context and its memory pool registration.
func (proc *Process) Free() {
	if proc.Cancel != nil {
		proc.Cancel()
	}
	mpool.DeleteMPool(proc.mp)
}
