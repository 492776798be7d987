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

// Package xlog is the structured-logging entry point every package in this
// module uses: named, leveled zap loggers, never the global logger.
package xlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Log is an alias for zap.Logger; LoggerModule returns one named after its
// module.
type Log = zap.Logger

var (
	mu      sync.Mutex
	base    *zap.Logger
	rotator *lumberjack.Logger
)

// Configure installs a rotating-file sink (via lumberjack) in addition to
// stderr. Call once at process startup; LoggerModule before Configure gets
// a stderr-only development logger.
func Configure(filePath string, maxSizeMB, maxBackups, maxAgeDays int) error {
	mu.Lock()
	defer mu.Unlock()

	rotator = &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(rotator), zap.InfoLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(zapcore.AddSync(os.Stderr)), zap.DebugLevel),
	)
	base = zap.New(core)
	return nil
}

// LoggerModule returns a *zap.Logger scoped to name, matching the
// lighthouse convention `s.log = xlog.LoggerModule("server")`.
func LoggerModule(name string) *Log {
	mu.Lock()
	l := base
	mu.Unlock()
	if l == nil {
		dev, _ := zap.NewDevelopment()
		l = dev
	}
	return l.Named(name)
}
