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

package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ThreadPoolExecutor splits a range of items into contiguous slices, one per thread.
type ThreadPoolExecutor struct {
	nthreads int
}

// NewThreadPoolExecutor uses runtime.NumCPU() threads when nthreads is not positive.
func NewThreadPoolExecutor(nthreads int) ThreadPoolExecutor {
	if nthreads <= 0 {
		nthreads = runtime.NumCPU()
	}
	return ThreadPoolExecutor{nthreads: nthreads}
}

func (e ThreadPoolExecutor) Threads() int {
	return e.nthreads
}

// Execute runs fn over [start, end) slices covering [0, nitems). Thread i gets
// the i-th slice, so slices of lower threads hold lower items. Threads with an
// empty slice are not started. The first error cancels ctx and is returned.
func (e ThreadPoolExecutor) Execute(
	ctx context.Context,
	nitems int,
	fn func(ctx context.Context, threadID int, start, end int) error) error {

	g, ctx := errgroup.WithContext(ctx)

	q := nitems / e.nthreads
	r := nitems % e.nthreads

	start := 0
	for i := 0; i < e.nthreads; i++ {
		size := q
		if i < r {
			size++
		}
		if size == 0 {
			break
		}

		end := start + size
		threadID, curStart, curEnd := i, start, end
		g.Go(func() error {
			return fn(ctx, threadID, curStart, curEnd)
		})
		start = end
	}

	return g.Wait()
}
