// Copyright 2020 The gVisor Authors.
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

// Package config provides basic infrastructure to set configuration settings
// for extsh. Settings come from flags and, optionally, from a TOML file. Flags
// set on the command line take precedence over the file.
package config

import (
	"flag"
	"fmt"
	"reflect"
	"strings"

	"extfs.dev/extfs/pkg/ext"
	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// DefaultImage is the image used when no other is given.
const DefaultImage = "vdisk.img"

// Config holds configuration that is shared by all extsh commands.
//
// Fields with a "flag" tag are populated from the flag of that name. Fields
// with a "toml" tag can also be set from the configuration file.
type Config struct {
	// ConfigFile is the path to a TOML file with more settings.
	ConfigFile string `flag:"config" toml:"-"`

	// Image is the image or block device used when a command is not given one.
	Image string `flag:"image" toml:"image"`

	// Mode is the mode images are opened with: "ro" or "rw".
	Mode string `flag:"mode" toml:"mode"`

	// LogLevel is the minimum level of log messages, as understood by logrus.
	LogLevel string `flag:"log-level" toml:"log_level"`

	// LogFormat is the format of log messages: "text" or "json".
	LogFormat string `flag:"log-format" toml:"log_format"`

	// LogFile is the file log messages are appended to. Empty means stderr.
	LogFile string `flag:"log" toml:"log_file"`

	// Jobs is the number of images probed concurrently.
	Jobs int `flag:"jobs" toml:"jobs"`
}

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML configuration file. Flags given on the command line override it.")
	flagSet.String("image", DefaultImage, "image or block device used when a command is not given one.")
	flagSet.String("mode", "ro", "mode images are opened with: ro or rw.")
	flagSet.String("log-level", "warning", "log level: panic, fatal, error, warning, info, debug or trace.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.String("log", "", "file path where log messages are written, default is stderr.")
	flagSet.Int("jobs", 4, "number of images probed concurrently.")
}

// NewFromFlags creates a new Config with values coming from command line flags
// and, if the config flag is set, the file it names.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		obj.Field(i).Set(reflect.ValueOf(flagValue(flagSet, name)))
	}

	if conf.ConfigFile != "" {
		if err := conf.loadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
		// Flags on the command line win over the file.
		flagSet.Visit(func(fl *flag.Flag) { conf.set(flagSet, fl.Name) })
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config file %q: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// set copies the value of the named flag into the field tagged with it. Flags
// without a matching field are ignored.
func (c *Config) set(flagSet *flag.FlagSet, name string) {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		if fieldName, ok := st.Field(i).Tag.Lookup("flag"); ok && fieldName == name {
			obj.Field(i).Set(reflect.ValueOf(flagValue(flagSet, name)))
			return
		}
	}
}

func flagValue(flagSet *flag.FlagSet, name string) any {
	fl := flagSet.Lookup(name)
	if fl == nil {
		panic(fmt.Sprintf("Flag %q not found", name))
	}
	return fl.Value.(flag.Getter).Get()
}

// Validate checks that every setting has a usable value.
func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("image must not be empty")
	}
	if _, err := ext.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be text or json", c.LogFormat)
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive, got %d", c.Jobs)
	}
	return nil
}

// VolumeMode returns Mode as an ext.Mode. It must only be called on a
// validated Config.
func (c *Config) VolumeMode() ext.Mode {
	m, err := ext.ParseMode(c.Mode)
	if err != nil {
		panic(err)
	}
	return m
}

// Log logs the effective configuration at debug level.
func (c *Config) Log() {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Debugf("Config.%s (--%s): %v", st.Field(i).Name, name, obj.Field(i).Interface())
	}
}
