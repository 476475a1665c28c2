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

package hashjoin

import (
	"context"
	"runtime"
	"sync"

	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/logutil/logutil2"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source returns the next batch of an input, nil once the input is exhausted.
type Source func(ctx context.Context) (*batch.Batch, error)

// Sink consumes one output batch. Run calls it from a single goroutine.
type Sink func(bat *batch.Batch) error

var newWorkerPool = func(size int, panicHandler func(interface{})) (*ants.Pool, error) {
	return ants.NewPool(size, ants.WithPanicHandler(panicHandler))
}

// firstError keeps the root cause: an interruption is replaced by any later
// real error, since cancelling the others is what the real error caused.
type firstError struct {
	sync.Mutex
	err error
}

func (fe *firstError) set(err error) {
	if err == nil {
		return
	}
	fe.Lock()
	defer fe.Unlock()
	if fe.err == nil || (moerr.IsMoErrCode(fe.err, moerr.ErrQueryInterrupted) &&
		!moerr.IsMoErrCode(err, moerr.ErrQueryInterrupted)) {
		fe.err = err
	}
}

func (fe *firstError) get() error {
	fe.Lock()
	defer fe.Unlock()
	return fe.err
}

// Run executes a whole join: the build input is consumed and sealed by one
// goroutine while workers probers, fed by a dispatcher, probe the probe input.
// Every output batch, the ones of Finalize last, goes to sink. The first
// error cancels everything and is returned.
func Run(ctx context.Context, proc *process.Process, arg Argument, workers int,
	build, probe Source, sink Sink) (*process.OperatorStats, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	hj, err := New(proc, arg)
	if err != nil {
		return nil, err
	}
	defer hj.Free()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var ferr firstError
	fail := func(err error) {
		ferr.set(err)
		cancel()
	}

	pool, err := newWorkerPool(workers, func(v interface{}) {
		fail(moerr.ConvertPanicError(ctx, v))
	})
	if err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	defer pool.Release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			bat, err := build(gctx)
			if err != nil {
				hj.Abort(gctx, err)
				return err
			}
			if bat == nil {
				return hj.Seal(gctx)
			}
			if err = hj.Build(gctx, bat); err != nil {
				return err
			}
		}
	})

	in := make(chan *batch.Batch, workers)
	g.Go(func() error {
		defer close(in)
		for {
			bat, err := probe(gctx)
			if err != nil {
				return err
			}
			if bat == nil {
				return nil
			}
			select {
			case in <- bat:
			case <-gctx.Done():
				return moerr.ConvertGoError(gctx, gctx.Err())
			}
		}
	})

	out := make(chan *batch.Batch, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		p, err := hj.NewProber()
		if err != nil {
			fail(err)
			break
		}
		wg.Add(1)
		worker := i
		if err = pool.Submit(func() {
			defer wg.Done()
			defer p.Close()
			defer func() {
				if v := recover(); v != nil {
					fail(moerr.ConvertPanicError(ctx, v))
				}
			}()
			if err := probeLoop(gctx, p, in, out); err != nil {
				logutil2.Error(ctx, "hash join probe worker failed", zap.Int("worker", worker), zap.Error(err))
				fail(err)
			}
		}); err != nil {
			p.Close()
			wg.Done()
			fail(moerr.ConvertGoError(ctx, err))
			break
		}
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	var sinkErr error
	for bat := range out {
		if sinkErr != nil {
			continue
		}
		if sinkErr = sink(bat); sinkErr != nil {
			fail(sinkErr)
		}
	}
	ferr.set(g.Wait())
	if err = ferr.get(); err != nil {
		return nil, err
	}

	outs, err := hj.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	for _, bat := range outs {
		if err = sink(bat); err != nil {
			return nil, err
		}
	}
	return hj.Stats(), nil
}

func probeLoop(ctx context.Context, p *Prober, in <-chan *batch.Batch, out chan<- *batch.Batch) error {
	for {
		var bat *batch.Batch
		var ok bool
		select {
		case bat, ok = <-in:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return moerr.ConvertGoError(ctx, ctx.Err())
		}
		outs, err := p.Probe(ctx, bat)
		if err != nil {
			return err
		}
		for _, o := range outs {
			select {
			case out <- o:
			case <-ctx.Done():
				return moerr.ConvertGoError(ctx, ctx.Err())
			}
		}
	}
}
