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
)

// Limitation specifies the maximum resources that can be used in one query.
type Limitation struct {
	// Size, memory threshold, 0 for unlimited.
	Size int64
	// BatchRows, max rows for batch.
	BatchRows int64
}

// Process contains context used in query execution
// one or more pipeline will be generated for one query,
// and one pipeline has one process instance.
type Process struct {
	// Id, query id.
	Id  string
	Lim Limitation

	Ctx    context.Context
	Cancel context.CancelFunc

	mp *mpool.MPool
}
