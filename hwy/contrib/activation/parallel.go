// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package activation

import "github.com/ajroetker/hwyconv/hwy/contrib/workerpool"

// Parallel tuning parameters for row-parallel activation operations.
const (
	// MinParallelActivationOps is the minimum total element count before
	// parallelizing memory-bound activation operations.
	MinParallelActivationOps = 16384

	// ActivationRowBatch is the number of rows handed to each worker in a
	// single batch via ParallelForAtomicBatched.
	ActivationRowBatch = 4
)

// ParallelApplyRows calls fn in place on each row of a [rows, cols] matrix.
// fn receives the row index and the row's slice.
//
// Falls back to sequential execution when pool is nil or the total element
// count is below MinParallelActivationOps.
func ParallelApplyRows(pool *workerpool.Pool, data []float32, rows, cols int, fn func(row int, data []float32)) {
	apply := func(start, end int) {
		for r := start; r < end; r++ {
			off := r * cols
			fn(r, data[off:off+cols])
		}
	}
	if pool == nil || rows*cols < MinParallelActivationOps {
		apply(0, rows)
		return
	}
	pool.ParallelForAtomicBatched(rows, ActivationRowBatch, apply)
}

// ParallelApply applies t in place to a feature map of rows x cols values.
//
// For planar data each row is one channel plane (rows = channels). For
// channels-last data each row is one pixel (cols = channels).
func ParallelApply(pool *workerpool.Pool, t Type, params []float32, data []float32, rows, cols int, channelsLast bool) {
	if t == Identity {
		return
	}
	if channelsLast {
		ParallelApplyRows(pool, data, rows, cols, func(_ int, row []float32) {
			ApplyInterleaved(t, params, row, cols)
		})
		return
	}
	ParallelApplyRows(pool, data, rows, cols, func(r int, row []float32) {
		Apply(t, params, row, r)
	})
}
