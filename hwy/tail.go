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

package hwy

// ProcessWithTail calls fullFn for each complete vector of V lanes in
// [0, size) and then tailFn once for the remaining count < NumLanes[V]()
// elements, if any. Offsets are in elements.
//
// Example:
//
//	hwy.ProcessWithTail[hwy.Float32x8](len(data),
//		func(off int) { v := hwy.Load[hwy.Float32x8](data[off:]); ... },
//		func(off, n int) { v := hwy.LoadN[hwy.Float32x8](data[off:], n); ... },
//	)
func ProcessWithTail[V Float32Vec](size int, fullFn func(offset int), tailFn func(offset, count int)) {
	lanes := NumLanes[V]()
	full := size / lanes
	for i := range full {
		fullFn(i * lanes)
	}
	if remaining := size % lanes; remaining > 0 {
		tailFn(full*lanes, remaining)
	}
}
