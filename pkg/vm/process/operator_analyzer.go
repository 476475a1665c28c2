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
	"fmt"
	"time"

	"github.com/matrixorigin/mojoin/pkg/container/batch"
)

// Analyze analyzes information for operator
type Analyzer interface {
	Start()
	Stop()
	Alloc(int64)
	Input(batch *batch.Batch)
	Output(*batch.Batch)
	WaitStop(time.Time)
	GetOpStats() *OperatorStats
	Reset()
}

// Operator Resource operatorAnalyzer
type operatorAnalyzer struct {
	start   time.Time
	wait    time.Duration
	opStats *OperatorStats
}

var _ Analyzer = &operatorAnalyzer{}

// NewAnalyzer returns an analyzer owned by a single goroutine.
func NewAnalyzer(operatorName string) Analyzer {
	return &operatorAnalyzer{
		opStats: NewOperatorStats(operatorName),
	}
}

func (opAlyzr *operatorAnalyzer) Reset() {
	opAlyzr.wait = 0
	opAlyzr.opStats.Reset()
}

func (opAlyzr *operatorAnalyzer) Start() {
	opAlyzr.start = time.Now()
	opAlyzr.wait = 0
}

func (opAlyzr *operatorAnalyzer) Stop() {
	totalDuration := time.Since(opAlyzr.start) - opAlyzr.wait
	if totalDuration < 0 {
		totalDuration = 0
	}
	opAlyzr.opStats.TotalWaitTimeConsumed += opAlyzr.wait.Nanoseconds()
	opAlyzr.opStats.TotalTimeConsumed += totalDuration.Nanoseconds()
	opAlyzr.opStats.CallCount++
}

func (opAlyzr *operatorAnalyzer) Alloc(size int64) {
	opAlyzr.opStats.TotalMemorySize += size
}

func (opAlyzr *operatorAnalyzer) Input(bat *batch.Batch) {
	if bat != nil {
		opAlyzr.opStats.TotalInputBlocks++
		opAlyzr.opStats.TotalInputSize += int64(bat.Size())
		opAlyzr.opStats.TotalInputRows += int64(bat.RowCount())
	}
}

func (opAlyzr *operatorAnalyzer) Output(bat *batch.Batch) {
	if bat != nil {
		opAlyzr.opStats.TotalOutputBlocks++
		opAlyzr.opStats.TotalOutputSize += int64(bat.Size())
		opAlyzr.opStats.TotalOutputRows += int64(bat.RowCount())
	}
}

func (opAlyzr *operatorAnalyzer) WaitStop(start time.Time) {
	opAlyzr.wait += time.Since(start)
}

func (opAlyzr *operatorAnalyzer) GetOpStats() *OperatorStats {
	return opAlyzr.opStats
}

type OperatorStats struct {
	OperatorName          string `json:"-"`
	CallCount             int    `json:"CallCount,omitempty"`
	TotalTimeConsumed     int64  `json:"TotalTimeConsumed,omitempty"`
	TotalWaitTimeConsumed int64  `json:"TotalWaitTimeConsumed,omitempty"`
	TotalMemorySize       int64  `json:"TotalMemorySize,omitempty"`
	TotalInputRows        int64  `json:"TotalInputRows,omitempty"`
	TotalInputSize        int64  `json:"TotalInputSize,omitempty"`
	TotalInputBlocks      int64  `json:"TotalInputBlocks,omitempty"`
	TotalOutputRows       int64  `json:"TotalOutputRows,omitempty"`
	TotalOutputSize       int64  `json:"TotalOutputSize,omitempty"`
	TotalOutputBlocks     int64  `json:"TotalOutputBlocks,omitempty"`
}

func NewOperatorStats(operatorName string) *OperatorStats {
	return &OperatorStats{
		OperatorName: operatorName,
	}
}

func (ps *OperatorStats) Reset() {
	*ps = OperatorStats{OperatorName: ps.OperatorName}
}

// Merge adds the counters of o into ps.
func (ps *OperatorStats) Merge(o *OperatorStats) {
	ps.CallCount += o.CallCount
	ps.TotalTimeConsumed += o.TotalTimeConsumed
	ps.TotalWaitTimeConsumed += o.TotalWaitTimeConsumed
	ps.TotalMemorySize += o.TotalMemorySize
	ps.TotalInputRows += o.TotalInputRows
	ps.TotalInputSize += o.TotalInputSize
	ps.TotalInputBlocks += o.TotalInputBlocks
	ps.TotalOutputRows += o.TotalOutputRows
	ps.TotalOutputSize += o.TotalOutputSize
	ps.TotalOutputBlocks += o.TotalOutputBlocks
}

func (ps *OperatorStats) String() string {
	return fmt.Sprintf(" CallNum:%d "+
		"TimeCost:%dns "+
		"WaitTime:%dns "+
		"InRows:%d "+
		"InBlock:%d "+
		"OutRows:%d "+
		"OutBlock:%d "+
		"InSize:%dbytes "+
		"OutSize:%dbytes "+
		"MemSize:%dbytes",
		ps.CallCount,
		ps.TotalTimeConsumed,
		ps.TotalWaitTimeConsumed,
		ps.TotalInputRows,
		ps.TotalInputBlocks,
		ps.TotalOutputRows,
		ps.TotalOutputBlocks,
		ps.TotalInputSize,
		ps.TotalOutputSize,
		ps.TotalMemorySize)
}
