/*
* Copyright (C) 2025 Google LLC
*
* Licensed under the Apache License, Version 2.0 (the "License"); you may not
* use this file except in compliance with the License. You may obtain a copy of
* the License at
*
*   http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
* WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
* License for the specific language governing permissions and limitations under
* the License.
 */

package utilities

import (
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig controls logger output. With OutputType "file" logs are
// rotated with lumberjack; any other value logs JSON to stdout.
type LoggerConfig struct {
	OutputType string `yaml:"outputType"`
	Filename   string `yaml:"fileName"`
	MaxSize    int    `yaml:"maxSize"` // megabytes
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"` // days
	Compress   bool   `yaml:"compress"`
	LogLevel   string `yaml:"logLevel"`
}

func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg != nil && cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, err
		}
	}
	if cfg != nil && cfg.OutputType == "file" {
		return setupFileLogger(level, cfg)
	}
	return setupConsoleLogger(level)
}

// setupFileLogger configures a zap.Logger for file output using a
// lumberjack.Logger for log rotation.
func setupFileLogger(level zap.AtomicLevel, cfg *LoggerConfig) (*zap.Logger, error) {
	filename := cfg.Filename
	if filename == "" {
		filename = "/var/log/cassandra-object-mapper/output.log"
	}
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 3 // setting default value to 3 days
	}
	maxBackups := cfg.MaxBackups
	if maxBackups == 0 {
		maxBackups = 10 // setting default max backups to 10 files
	}
	rotationalLogger := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize, // megabytes, default 100MB
		MaxAge:     maxAge,
		MaxBackups: maxBackups,
		Compress:   cfg.Compress,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotationalLogger),
		level,
	)
	return zap.New(core), nil
}

func setupConsoleLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	config := zap.Config{
		Encoding:         "json",
		Level:            level,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			CallerKey:      "caller",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
	return config.Build()
}
