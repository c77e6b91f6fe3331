// Copyright 2018 The gVisor Authors.
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

// Package cli is the main entrypoint for extsh.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"

	"extfs.dev/extfs/extsh/cmd"
	"extfs.dev/extfs/extsh/config"
	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	logFile, err := configureLogger(log.StandardLogger(), conf)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	log.Infof("extsh %s, %s/%s, PID %d", runtime.Version(), runtime.GOOS, runtime.GOARCH, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()

	// Call the subcommand and pass in the configuration.
	status := subcommands.Execute(context.Background(), conf)
	if status != subcommands.ExitSuccess {
		log.Infof("Exiting with status: %v", status)
	}
	if logFile != nil {
		logFile.Close()
	}
	os.Exit(int(status))
}

// forEachCmd invokes the passed callback for each command supported by extsh.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const inspect = "inspect"
	cb(new(cmd.Label), inspect)
	cb(new(cmd.Info), inspect)
	cb(new(cmd.Features), inspect)
	cb(new(cmd.Probe), inspect)
	cb(new(cmd.Shell), inspect)
}

// configureLogger applies the log settings in conf to logger. If a log file
// is configured, it is returned and must be closed by the caller.
func configureLogger(logger *log.Logger, conf *config.Config) (io.Closer, error) {
	level, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter(conf.LogFormat))

	if conf.LogFile == "" {
		logger.SetOutput(os.Stderr)
		return nil, nil
	}
	// O_APPEND keeps logs of earlier runs.
	f, err := os.OpenFile(conf.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(f)
	return f, nil
}

func newFormatter(format string) log.Formatter {
	switch format {
	case "json":
		return &log.JSONFormatter{}
	case "text":
		return &log.TextFormatter{FullTimestamp: true}
	default:
		panic("invalid log format: " + format)
	}
}
