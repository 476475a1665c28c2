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

package config

import (
	"context"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/matrixorigin/mojoin/pkg/common/moerr"
	"github.com/matrixorigin/mojoin/pkg/logutil"
)

type ConfigurationKeyType int

const (
	ParameterUnitKey ConfigurationKeyType = 1
)

const (
	// DefaultMaxBatchSize is the row capacity of every emitted batch
	// and of the per-probe scratch buffers.
	DefaultMaxBatchSize = 8192

	defaultLogLevel   = "info"
	defaultLogFormat  = "console"
	defaultLogMaxSize = 512
)

// JoinParameters of the join engine
type JoinParameters struct {
	// maxBatchSize bounds emitted batches and probe windows. default: 8192
	MaxBatchSize int `toml:"maxBatchSize"`

	// memoryLimit caps the bytes a hash table may hold, e.g. "2GiB".
	// empty or "0" means unlimited.
	MemoryLimit string `toml:"memoryLimit"`

	// probeWorkers is the number of concurrent probers used by the parallel driver.
	// default: runtime.NumCPU()
	ProbeWorkers int `toml:"probeWorkers"`

	Log logutil.LogConfig `toml:"log"`

	memoryLimitBytes int64
}

// LoadParameters decodes the toml file at path, fills in defaults and validates the result.
func LoadParameters(path string) (*JoinParameters, error) {
	jp := &JoinParameters{}
	if _, err := toml.DecodeFile(path, jp); err != nil {
		return nil, moerr.NewBadConfig(context.TODO(), "decode %s: %v", path, err)
	}
	jp.SetDefaultValues()
	if err := jp.Validate(); err != nil {
		return nil, err
	}
	return jp, nil
}

// DecodeParameters is LoadParameters for an in-memory document.
func DecodeParameters(data string) (*JoinParameters, error) {
	jp := &JoinParameters{}
	if _, err := toml.Decode(data, jp); err != nil {
		return nil, moerr.NewBadConfig(context.TODO(), "decode: %v", err)
	}
	jp.SetDefaultValues()
	if err := jp.Validate(); err != nil {
		return nil, err
	}
	return jp, nil
}

func (jp *JoinParameters) SetDefaultValues() {
	if jp.MaxBatchSize == 0 {
		jp.MaxBatchSize = DefaultMaxBatchSize
	}
	if jp.ProbeWorkers == 0 {
		jp.ProbeWorkers = runtime.NumCPU()
	}
	if jp.Log.Level == "" {
		jp.Log.Level = defaultLogLevel
	}
	if jp.Log.Format == "" {
		jp.Log.Format = defaultLogFormat
	}
	if jp.Log.MaxSize == 0 {
		jp.Log.MaxSize = defaultLogMaxSize
	}
}

func (jp *JoinParameters) Validate() error {
	ctx := context.TODO()
	if jp.MaxBatchSize < 0 {
		return moerr.NewBadConfig(ctx, "maxBatchSize must be positive, got %d", jp.MaxBatchSize)
	}
	if jp.ProbeWorkers < 0 {
		return moerr.NewBadConfig(ctx, "probeWorkers must be positive, got %d", jp.ProbeWorkers)
	}
	jp.memoryLimitBytes = 0
	if jp.MemoryLimit != "" {
		n, err := humanize.ParseBytes(jp.MemoryLimit)
		if err != nil {
			return moerr.NewBadConfig(ctx, "memoryLimit %q: %v", jp.MemoryLimit, err)
		}
		jp.memoryLimitBytes = int64(n)
	}
	switch jp.Log.Format {
	case "", "json", "console":
	default:
		return moerr.NewBadConfig(ctx, "unsupported log format: %s", jp.Log.Format)
	}
	return nil
}

// MemoryLimitBytes is the parsed memoryLimit, 0 for unlimited.
// Valid after Validate.
func (jp *JoinParameters) MemoryLimitBytes() int64 {
	return jp.memoryLimitBytes
}

// GetParameters gets the configuration from the context.
func GetParameters(ctx context.Context) *JoinParameters {
	jp, ok := ctx.Value(ParameterUnitKey).(*JoinParameters)
	if !ok || jp == nil {
		panic("join parameters are invalid")
	}
	return jp
}

func WithParameters(ctx context.Context, jp *JoinParameters) context.Context {
	return context.WithValue(ctx, ParameterUnitKey, jp)
}
