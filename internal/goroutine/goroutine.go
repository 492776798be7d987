/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package goroutine dispatches work onto a shared ants pool instead of
// spawning a raw goroutine per call, matching the
// `goroutine.Go(func() { c.listen() })` call site in lighthouse's server.
package goroutine

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

var (
	once sync.Once
	pool *ants.Pool
)

func defaultPool() *ants.Pool {
	once.Do(func() {
		p, err := ants.NewPool(ants.DefaultAntsPoolSize, ants.WithNonblocking(true))
		if err != nil {
			panic(err)
		}
		pool = p
	})
	return pool
}

// Go submits fn to the shared pool. If the pool is saturated, Go falls back
// to a raw goroutine rather than blocking the caller indefinitely — the
// per-connection listen loop must never stall on pool capacity.
func Go(fn func()) {
	if err := defaultPool().Submit(fn); err != nil {
		go fn()
	}
}

// Release tears down the shared pool; used by tests and graceful shutdown.
func Release() {
	if pool != nil {
		pool.Release()
	}
}
