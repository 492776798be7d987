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

// Package xtrace names the tracer this module registers with the globally
// configured otel TracerProvider; exporters (jaeger/zipkin) are wired by
// process supervision, not by this package.
package xtrace

// Name is the instrumentation name passed to
// otel.GetTracerProvider().Tracer(xtrace.Name).
const Name = "github.com/beaconmq/beacon"
