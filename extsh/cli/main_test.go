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

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"extfs.dev/extfs/extsh/config"
	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
)

func TestCommands(t *testing.T) {
	var names []string
	forEachCmd(func(cmd subcommands.Command, _ string) {
		names = append(names, cmd.Name())
	})
	sort.Strings(names)
	want := []string{"commands", "features", "flags", "help", "info", "label", "probe", "shell"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("registered commands mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigureLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extsh.log")
	conf := &config.Config{LogLevel: "info", LogFormat: "json", LogFile: path}

	logger := log.New()
	closer, err := configureLogger(logger, conf)
	if err != nil {
		t.Fatalf("configureLogger: %v", err)
	}
	logger.Debugf("hidden")
	logger.Warningf("probe of %q failed", "disk.img")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1:\n%s", len(lines), b)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, lines[0])
	}
	if got, want := entry["msg"], `probe of "disk.img" failed`; got != want {
		t.Errorf("msg = %v, want %q", got, want)
	}
	if got, want := entry["level"], "warning"; got != want {
		t.Errorf("level = %v, want %q", got, want)
	}
}

func TestConfigureLoggerStderr(t *testing.T) {
	logger := log.New()
	closer, err := configureLogger(logger, &config.Config{LogLevel: "debug", LogFormat: "text"})
	if err != nil {
		t.Fatalf("configureLogger: %v", err)
	}
	if closer != nil {
		t.Errorf("configureLogger returned a closer for stderr")
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want %v", logger.GetLevel(), log.DebugLevel)
	}
	if _, ok := logger.Formatter.(*log.TextFormatter); !ok {
		t.Errorf("formatter = %T, want *logrus.TextFormatter", logger.Formatter)
	}
}

func TestConfigureLoggerBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "extsh.log")
	if _, err := configureLogger(log.New(), &config.Config{LogLevel: "info", LogFormat: "text", LogFile: path}); err == nil {
		t.Errorf("configureLogger with log file in missing directory succeeded")
	}
}
