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
	"time"

	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/container/batch"
	"github.com/matrixorigin/mojoin/pkg/container/vector"
	v2 "github.com/matrixorigin/mojoin/pkg/util/metric/v2"
)

// resolve binds the join type behavior of the prober once.
func (p *Prober) resolve() {
	jt := p.hj.JoinType
	p.flush = p.flushPairs
	p.afterRow = p.nextRow
	p.finishWindow = p.noop
	p.onUnknown = func(int) {}

	if p.hj.Cond != nil {
		p.needSlot = true
		p.onMatch = p.pushCandidate
		p.flush = p.flushCandidates
		switch jt {
		case Inner, Cross:
			p.onPass = p.passPair
		case Right:
			p.onPass = p.passMarkedPair
		case Left:
			p.onPass = p.passCountedPair
			p.finishWindow = p.emitUnmatchedProbe
		case Single:
			p.onPass = p.passSinglePair
			p.finishWindow = p.emitUnmatchedProbe
		case Full:
			p.onPass = p.passFullPair
			p.finishWindow = p.emitUnmatchedProbe
		case Semi, Anti, Mark:
			p.onMatch = p.pushProbeCandidate
			p.onPass = p.passProbeMarker
			if jt == Mark {
				p.onUnknown = p.unknownProbeMarker
			}
			p.finishWindow = p.emitByMarker(jt)
		case RightSemi, RightAnti:
			p.onMatch = p.pushBuildCandidate
			p.onPass = p.passBuildMarker
		}
		return
	}

	switch jt {
	case Inner, Cross:
		p.needSlot = true
		p.onMatch = p.pushPair
	case Right:
		p.needSlot = true
		p.onMatch = p.pushMarkedPair
	case Left:
		p.needSlot = true
		p.onMatch = p.pushCountedPair
		p.afterRow = p.nullExtendRow
	case Single:
		p.needSlot = true
		p.onMatch = p.pushSinglePair
		p.afterRow = p.nullExtendRow
	case Full:
		p.needSlot = true
		p.onMatch = p.pushFullPair
		p.afterRow = p.nullExtendRow
	case Semi, Anti, Mark:
		p.stopOnMatch = true
		p.onMatch = p.markProbe
		p.finishWindow = p.emitByMarker(jt)
	case RightSemi, RightAnti:
		p.onMatch = p.markBuild
	}
}

// Probe joins bat against the build side and returns the output batches,
// each holding at most MaxBatchSize rows. It waits for Seal first.
func (p *Prober) Probe(ctx context.Context, bat *batch.Batch) ([]*batch.Batch, error) {
	if p.closed {
		return nil, moerr.NewInvalidState(ctx, "probe on a closed prober")
	}
	if err := p.hj.waitSealed(ctx); err != nil {
		return nil, err
	}
	if bat == nil || bat.IsEmpty() {
		return nil, nil
	}
	if err := checkSchema(ctx, "probe", bat, p.hj.ProbeTypes); err != nil {
		return nil, err
	}
	if p.itr == nil {
		jm := p.hj.ctr.jm
		p.itr = jm.NewIterator()
		p.asm.jm = jm
	}

	start := time.Now()
	p.analyzer.Start()
	defer p.analyzer.Stop()
	p.analyzer.Input(bat)

	outs, err := p.probe(ctx, bat)
	if err != nil {
		p.state.clear()
		p.asm.reset()
		return nil, err
	}

	var rows int
	for _, out := range outs {
		p.analyzer.Output(out)
		rows += out.RowCount()
	}
	v2.JoinProbeRowsCounter.Add(float64(bat.RowCount()))
	v2.JoinProbeOutputRowsCounter.Add(float64(rows))
	v2.JoinProbeDurationHistogram.Observe(time.Since(start).Seconds())
	return outs, nil
}

// Close retires the prober, it must not probe again.
func (p *Prober) Close() {
	if p.closed {
		return
	}
	p.closed = true
	ctr := &p.hj.ctr
	ctr.mu.Lock()
	defer ctr.mu.Unlock()
	ctr.stats.Merge(p.analyzer.GetOpStats())
	ctr.active--
	if ctr.active == 0 && ctr.finalizing {
		close(ctr.drained)
	}
}

func (p *Prober) probe(ctx context.Context, bat *batch.Batch) ([]*batch.Batch, error) {
	keys, err := p.evalJoinCondition(bat)
	if err != nil {
		return nil, err
	}
	p.bat, p.keys = bat, keys
	defer func() {
		p.bat, p.keys = nil, nil
	}()

	count := bat.RowCount()
	for start := 0; start < count; start += p.state.capacity {
		if err = ctx.Err(); err != nil {
			return nil, moerr.ConvertGoError(ctx, err)
		}
		end := start + p.state.capacity
		if end > count {
			end = count
		}
		if err = p.probeWindow(start, end); err != nil {
			return nil, err
		}
	}
	return p.asm.take(), nil
}

// probeWindow probes rows [start, end), at most one scratch capacity of rows.
func (p *Prober) probeWindow(start, end int) error {
	p.state.resetWindow(p.keys, start, end-start)
	p.winStart = start
	p.blockStart, p.blockEnd = 0, 0
	p.cur = cursor{row: start}
	for {
		done, err := p.scan(end)
		if err != nil {
			return err
		}
		if err = p.flush(); err != nil {
			return err
		}
		if done {
			break
		}
	}
	return p.finishWindow(start, end)
}

// scan collects the matches of the window rows from the cursor on. It stops
// when the scratch is full, the next call resumes where it stopped.
func (p *Prober) scan(end int) (bool, error) {
	jm := p.hj.ctr.jm
	for p.cur.row < end {
		row := p.cur.row
		cands, err := p.candidates(row, end)
		if err != nil {
			return false, err
		}
		for p.cur.cand < len(cands) {
			ptr := cands[p.cur.cand]
			if !p.cross && !jm.KeyEqual(ptr, p.keys, row) {
				p.cur.cand++
				continue
			}
			if p.needSlot && p.state.full() {
				return false, nil
			}
			p.cur.cand++
			if err = p.onMatch(row, ptr); err != nil {
				return false, err
			}
			if p.stopOnMatch {
				p.cur.cand = len(cands)
			}
		}
		if !p.afterRow(row) {
			return false, nil
		}
		p.cur = cursor{row: row + 1}
	}
	return true, nil
}

// candidates returns the build rows sharing the key hash of row. Null keys have none.
func (p *Prober) candidates(row, end int) ([]hashmap.RowPtr, error) {
	if p.cross {
		return p.hj.ctr.allRows, nil
	}
	if !p.state.validity().Test(uint(row - p.winStart)) {
		return nil, nil
	}
	if row < p.blockStart || row >= p.blockEnd {
		n := end - row
		if n > hashmap.UnitLimit {
			n = hashmap.UnitLimit
		}
		cands, _, err := p.itr.Find(row, n, p.keys)
		if err != nil {
			return nil, err
		}
		p.blockStart, p.blockEnd, p.cands = row, row+n, cands
	}
	return p.cands[row-p.blockStart], nil
}

func (p *Prober) evalJoinCondition(bat *batch.Batch) ([]*vector.Vector, error) {
	keys := make([]*vector.Vector, len(p.hj.ProbeKeys))
	for i, expr := range p.hj.ProbeKeys {
		vec, err := expr.Eval(p.hj.proc, []*batch.Batch{bat})
		if err != nil {
			return nil, err
		}
		if vec.Length() != bat.RowCount() {
			return nil, moerr.NewInternalError(p.hj.proc.Ctx, "probe key %d has %d rows, batch has %d", i, vec.Length(), bat.RowCount())
		}
		keys[i] = vec
	}
	return keys, nil
}

func (p *Prober) push(row int, ptr hashmap.RowPtr) {
	p.state.push(row, row-p.winStart, ptr)
}

func (p *Prober) nextRow(int) bool {
	return true
}

func (p *Prober) noop(int, int) error {
	return nil
}

func (p *Prober) singleViolation() error {
	v2.JoinSingleViolationCounter.Inc()
	return moerr.NewSingleJoinTooManyRows(p.hj.proc.Ctx)
}

// Matches without a residual predicate.

func (p *Prober) pushPair(row int, ptr hashmap.RowPtr) error {
	p.push(row, ptr)
	return nil
}

func (p *Prober) pushMarkedPair(row int, ptr hashmap.RowPtr) error {
	p.hj.ctr.jm.Mark(ptr)
	p.push(row, ptr)
	return nil
}

func (p *Prober) pushCountedPair(row int, ptr hashmap.RowPtr) error {
	p.cur.matches++
	p.push(row, ptr)
	return nil
}

func (p *Prober) pushSinglePair(row int, ptr hashmap.RowPtr) error {
	if p.cur.matches++; p.cur.matches > 1 {
		return p.singleViolation()
	}
	p.push(row, ptr)
	return nil
}

func (p *Prober) pushFullPair(row int, ptr hashmap.RowPtr) error {
	p.cur.matches++
	p.hj.ctr.jm.Mark(ptr)
	p.push(row, ptr)
	return nil
}

func (p *Prober) markProbe(row int, _ hashmap.RowPtr) error {
	p.state.markers[row-p.winStart] = hashmap.Matched
	return nil
}

func (p *Prober) markBuild(_ int, ptr hashmap.RowPtr) error {
	p.hj.ctr.jm.Mark(ptr)
	return nil
}

// nullExtendRow pairs a row without matches with a null build row.
func (p *Prober) nullExtendRow(row int) bool {
	if p.cur.matches > 0 {
		return true
	}
	if p.state.full() {
		return false
	}
	p.push(row, hashmap.NullRowPtr)
	return true
}

func (p *Prober) flushPairs() error {
	s := p.state
	for i, idx := range s.probeIndexes {
		if err := p.asm.appendPair(p.bat, int(idx.Row), s.buildIndexes[i]); err != nil {
			return err
		}
	}
	s.clear()
	return nil
}

// Matches filtered by the residual predicate.

func (p *Prober) pushCandidate(row int, ptr hashmap.RowPtr) error {
	p.push(row, ptr)
	return nil
}

func (p *Prober) pushProbeCandidate(row int, ptr hashmap.RowPtr) error {
	if p.state.markers[row-p.winStart] != hashmap.Matched {
		p.push(row, ptr)
	}
	return nil
}

func (p *Prober) pushBuildCandidate(row int, ptr hashmap.RowPtr) error {
	if !p.hj.ctr.jm.IsMarked(ptr) {
		p.push(row, ptr)
	}
	return nil
}

// flushCandidates evaluates the residual predicate over the gathered candidates.
func (p *Prober) flushCandidates() error {
	s := p.state
	if s.len() == 0 {
		return nil
	}
	defer s.clear()

	probeBat, buildBat, err := p.gatherCandidates()
	if err != nil {
		return err
	}
	vec, err := p.hj.Cond.Eval(p.hj.proc, []*batch.Batch{probeBat, buildBat})
	if err != nil {
		return err
	}
	if vec.Length() != s.len() {
		return moerr.NewInternalError(p.hj.proc.Ctx, "residual predicate returns %d rows for %d candidates", vec.Length(), s.len())
	}
	rs := vector.MustFixedCol[bool](vec)
	for i := range s.probeIndexes {
		if vec.IsNull(uint64(i)) {
			p.onUnknown(i)
			continue
		}
		if !rs[i] {
			continue
		}
		if err = p.onPass(i); err != nil {
			return err
		}
	}
	return nil
}

// gatherCandidates materializes the probe rows and the build rows of the candidates.
func (p *Prober) gatherCandidates() (*batch.Batch, *batch.Batch, error) {
	s := p.state
	n := s.len()
	probeBat := batch.NewWithSchema(p.hj.ProbeTypes, n)
	for i, vec := range probeBat.Vecs {
		src := p.bat.Vecs[i]
		for _, idx := range s.probeIndexes {
			if err := vec.UnionOne(src, int64(idx.Row)); err != nil {
				return nil, nil, err
			}
		}
	}
	probeBat.SetRowCount(n)

	jm := p.hj.ctr.jm
	buildBat := batch.NewWithSchema(p.hj.BuildTypes, n)
	for i, vec := range buildBat.Vecs {
		for _, ptr := range s.buildIndexes {
			src := jm.Chunk(int(ptr.ChunkIndex)).Vecs[i]
			if err := vec.UnionOne(src, int64(ptr.RowIndex)); err != nil {
				return nil, nil, err
			}
		}
	}
	buildBat.SetRowCount(n)
	return probeBat, buildBat, nil
}

func (p *Prober) candidate(i int) (int, hashmap.RowPtr) {
	return int(p.state.probeIndexes[i].Row), p.state.buildIndexes[i]
}

func (p *Prober) passPair(i int) error {
	row, ptr := p.candidate(i)
	return p.asm.appendPair(p.bat, row, ptr)
}

func (p *Prober) passMarkedPair(i int) error {
	row, ptr := p.candidate(i)
	p.hj.ctr.jm.Mark(ptr)
	return p.asm.appendPair(p.bat, row, ptr)
}

func (p *Prober) passCountedPair(i int) error {
	p.state.rowState[p.state.rowStateIndexes[i]]++
	return p.passPair(i)
}

func (p *Prober) passSinglePair(i int) error {
	rel := p.state.rowStateIndexes[i]
	if p.state.rowState[rel]++; p.state.rowState[rel] > 1 {
		return p.singleViolation()
	}
	return p.passPair(i)
}

func (p *Prober) passFullPair(i int) error {
	p.state.rowState[p.state.rowStateIndexes[i]]++
	return p.passMarkedPair(i)
}

func (p *Prober) passProbeMarker(i int) error {
	row, _ := p.candidate(i)
	p.state.markers[row-p.winStart] = hashmap.Matched
	return nil
}

func (p *Prober) unknownProbeMarker(i int) {
	row, _ := p.candidate(i)
	if m := &p.state.markers[row-p.winStart]; *m == hashmap.Unmatched {
		*m = hashmap.MatchedNull
	}
}

func (p *Prober) passBuildMarker(i int) error {
	_, ptr := p.candidate(i)
	p.hj.ctr.jm.Mark(ptr)
	return nil
}

// Window results.

// emitUnmatchedProbe pairs every window row without a surviving match with a null build row.
func (p *Prober) emitUnmatchedProbe(start, end int) error {
	for rel, n := range p.state.rowState[:end-start] {
		if n > 0 {
			continue
		}
		if err := p.asm.appendPair(p.bat, start+rel, hashmap.NullRowPtr); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prober) emitByMarker(jt JoinType) func(start, end int) error {
	switch jt {
	case Semi:
		return p.emitSemi
	case Anti:
		return p.emitAnti
	default:
		return p.emitMark
	}
}

func (p *Prober) emitSemi(start, end int) error {
	for rel, m := range p.state.markers[:end-start] {
		if m != hashmap.Matched {
			continue
		}
		if err := p.asm.appendProbe(p.bat, start+rel); err != nil {
			return err
		}
	}
	return nil
}

// emitAnti keeps the rows no build row matched, null keys included.
func (p *Prober) emitAnti(start, end int) error {
	for rel, m := range p.state.markers[:end-start] {
		if m == hashmap.Matched {
			continue
		}
		if err := p.asm.appendProbe(p.bat, start+rel); err != nil {
			return err
		}
	}
	return nil
}

// emitMark emits every window row with its mark: true when a match passed,
// false when the build side is empty, NULL when the key or a residual
// outcome is unknown or the build side holds a null key, else false.
func (p *Prober) emitMark(start, end int) error {
	jm := p.hj.ctr.jm
	empty := jm.GetRowCount() == 0
	valids := p.state.validity()
	for rel, m := range p.state.markers[:end-start] {
		var mark, isNull bool
		switch {
		case empty:
		case m == hashmap.Matched:
			mark = true
		case m == hashmap.MatchedNull, !valids.Test(uint(rel)), jm.HasNullKey():
			isNull = true
		}
		if err := p.asm.appendMark(p.bat, start+rel, mark, isNull); err != nil {
			return err
		}
	}
	return nil
}
