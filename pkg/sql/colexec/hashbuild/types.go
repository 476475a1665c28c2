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

package hashbuild

import (
	"github.com/matrixorigin/mojoin/pkg/common/hashmap"
	"github.com/matrixorigin/mojoin/pkg/container/types"
	"github.com/matrixorigin/mojoin/pkg/sql/colexec"
	"github.com/matrixorigin/mojoin/pkg/vm/process"
)

const (
	Build = iota
	Sealed
	Aborted
)

type container struct {
	state int

	jm  *hashmap.JoinMap
	itr *hashmap.Iterator

	// first error that aborted the build
	err error
}

type Argument struct {
	// Typs are the column types of every build batch.
	Typs []types.Type
	// Conditions evaluate the join keys against {build batch}.
	Conditions []colexec.ExpressionExecutor
	// NeedMarkers asks Seal to allocate one match marker per build row.
	NeedMarkers bool
}

// HashBuild turns a stream of build batches into a sealed JoinMap.
// It is driven by a single goroutine.
type HashBuild struct {
	ctr container
	Argument

	OpAnalyzer process.Analyzer
}
