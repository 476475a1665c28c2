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

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/config"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	"github.com/matrixorigin/mojoin/pkg/logutil"
	"github.com/matrixorigin/mojoin/pkg/logutil/logutil2"
	"github.com/matrixorigin/mojoin/pkg/sql/colexec"
	"github.com/matrixorigin/mojoin/pkg/sql/colexec/hashjoin"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var i64 = types.T_int64.ToType()

type benchOptions struct {
	join      string
	buildRows int
	probeRows int
	keyRange  int64
	nullRatio float64
	cond      bool
	seed      int64
	workers   int
}

type benchResult struct {
	joinType   hashjoin.JoinType
	outputRows int64
	elapsed    time.Duration
	stats      *process.OperatorStats
}

func runCommand() *cobra.Command {
	opts := benchOptions{}
	var cpuProfile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join two generated relations",
		Long: "Generate a build relation (key, val) and a probe relation (key, val) of int64 columns, " +
			"join them on key and print the operator statistics",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jp, err := loadParameters(cmd)
			if err != nil {
				return err
			}
			logutil.SetupMOLogger(&jp.Log)
			if cpuProfile != "" {
				stop, err := startCPUProfile(cpuProfile)
				if err != nil {
					return err
				}
				defer stop()
			}
			if opts.workers > runtime.NumCPU() {
				logutil.Warnf("%d probe workers exceed the %d available CPUs", opts.workers, runtime.NumCPU())
			}
			res, err := runBench(config.WithParameters(cmd.Context(), jp), opts)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.join, "join", "inner", "join type, e.g. inner, left, right_anti, mark")
	flags.IntVar(&opts.buildRows, "build-rows", 1<<20, "rows of the build relation")
	flags.IntVar(&opts.probeRows, "probe-rows", 1<<22, "rows of the probe relation")
	flags.Int64Var(&opts.keyRange, "key-range", 1<<20, "keys are drawn uniformly from [0, key-range)")
	flags.Float64Var(&opts.nullRatio, "null-ratio", 0, "fraction of null keys on both sides")
	flags.BoolVar(&opts.cond, "cond", false, "add the residual predicate probe.val < build.val")
	flags.Int64Var(&opts.seed, "seed", 1, "random seed")
	flags.IntVar(&opts.workers, "workers", 0, "probe workers, overrides probeWorkers of the config")
	flags.StringVar(&cpuProfile, "cpu-profile", "", "write cpu profile to the specified file")
	return cmd
}

func (opts benchOptions) validate(ctx context.Context) error {
	if opts.buildRows < 0 || opts.probeRows < 0 {
		return moerr.NewInvalidInput(ctx, "row counts must not be negative")
	}
	if opts.keyRange <= 0 {
		return moerr.NewInvalidInput(ctx, "key-range must be positive, got %d", opts.keyRange)
	}
	if opts.nullRatio < 0 || opts.nullRatio > 1 {
		return moerr.NewInvalidInput(ctx, "null-ratio must be in [0, 1], got %v", opts.nullRatio)
	}
	return nil
}

// newBenchArgument leaves MaxBatchSize to the process limitation.
func newBenchArgument(jt hashjoin.JoinType, cond bool) (hashjoin.Argument, error) {
	arg := hashjoin.Argument{
		JoinType:   jt,
		BuildTypes: []types.Type{i64, i64},
		ProbeTypes: []types.Type{i64, i64},
	}
	if jt != hashjoin.Cross {
		arg.BuildKeys = []colexec.ExpressionExecutor{colexec.NewColumnExecutor(0, 0, i64)}
		arg.ProbeKeys = []colexec.ExpressionExecutor{colexec.NewColumnExecutor(0, 0, i64)}
	}
	if cond {
		expr, err := colexec.NewFunctionExecutor(colexec.LESS_THAN,
			colexec.NewColumnExecutor(0, 1, i64), colexec.NewColumnExecutor(1, 1, i64))
		if err != nil {
			return arg, err
		}
		arg.Cond = expr
	}
	return arg, nil
}

// generator hands out batches of a random (key, val) relation.
type generator struct {
	r         *rand.Rand
	rows      int
	batchSize int
	keyRange  int64
	nullRatio float64
	next      int
}

func (g *generator) source(ctx context.Context) (*batch.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	if g.next >= g.rows {
		return nil, nil
	}
	n := g.rows - g.next
	if n > g.batchSize {
		n = g.batchSize
	}
	keys := make([]int64, n)
	vals := make([]int64, n)
	isNulls := make([]bool, n)
	for i := range keys {
		keys[i] = g.r.Int63n(g.keyRange)
		vals[i] = int64(g.next + i)
		isNulls[i] = g.nullRatio > 0 && g.r.Float64() < g.nullRatio
	}
	g.next += n
	return batch.NewWithVecs(
		vector.NewVecWithData(i64, keys, isNulls),
		vector.NewVecWithData(i64, vals, nil))
}

// runBench joins two generated relations with the parameters carried by ctx.
func runBench(ctx context.Context, opts benchOptions) (*benchResult, error) {
	jp := config.GetParameters(ctx)
	if err := opts.validate(ctx); err != nil {
		return nil, err
	}
	jt, ok := hashjoin.ParseJoinType(opts.join)
	if !ok {
		return nil, moerr.NewInvalidInput(ctx, "unknown join type %q", opts.join)
	}
	workers := jp.ProbeWorkers
	if opts.workers > 0 {
		workers = opts.workers
	}

	proc, err := process.NewFromLimitation(ctx, fmt.Sprintf("bench-%d", opts.seed), process.Limitation{
		Size:      jp.MemoryLimitBytes(),
		BatchRows: int64(jp.MaxBatchSize),
	})
	if err != nil {
		return nil, err
	}
	defer proc.Free()

	arg, err := newBenchArgument(jt, opts.cond)
	if err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(opts.seed))
	build := &generator{r: rand.New(rand.NewSource(r.Int63())), rows: opts.buildRows,
		batchSize: jp.MaxBatchSize, keyRange: opts.keyRange, nullRatio: opts.nullRatio}
	probe := &generator{r: rand.New(rand.NewSource(r.Int63())), rows: opts.probeRows,
		batchSize: jp.MaxBatchSize, keyRange: opts.keyRange, nullRatio: opts.nullRatio}

	logger := logutil2.With(proc.Ctx).With(zap.String("join", jt.String()))
	logger.Info("join bench started",
		zap.Int("build-rows", opts.buildRows),
		zap.Int("probe-rows", opts.probeRows),
		zap.Int("workers", workers),
		zap.Bool("cond", opts.cond))

	res := &benchResult{joinType: jt}
	start := time.Now()
	stats, err := hashjoin.Run(proc.Ctx, proc, arg, workers, build.source, probe.source,
		func(bat *batch.Batch) error {
			res.outputRows += int64(bat.RowCount())
			return nil
		})
	if err != nil {
		logger.Error("join bench failed", zap.Error(err))
		return nil, err
	}
	res.elapsed = time.Since(start)
	res.stats = stats
	return res, nil
}

func printResult(w io.Writer, res *benchResult) {
	fmt.Fprintf(w, "join:      %s\n", res.joinType)
	fmt.Fprintf(w, "output:    %s rows\n", humanize.Comma(res.outputRows))
	fmt.Fprintf(w, "elapsed:   %s\n", res.elapsed)
	if secs := res.elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "probe:     %s rows/s\n", humanize.Comma(int64(float64(res.stats.TotalInputRows)/secs)))
	}
	fmt.Fprintf(w, "memory:    %s\n", humanize.IBytes(uint64(res.stats.TotalMemorySize)))
	fmt.Fprintf(w, "stats:     %s\n", res.stats.String())
}
