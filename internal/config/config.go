// Package config implements spec.md §6's "External interfaces: Config" and
// the target/thread options the teacher's src/util.Options carried
// (TargetArch/Threads/Verbose), bound from file/env/flags by
// github.com/spf13/viper instead of the teacher's hand-rolled
// src/util/args.go flag scanner.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Target architectures a host may request for future native lowering
// (stubbed per spec.md's non-goals; carried as configuration surface only,
// mirroring the teacher's util.Options.TargetArch).
const (
	ArchUnknown = iota
	ArchX86_64
	ArchX86_32
	ArchAarch64
	ArchRiscv64
	ArchRiscv32
)

var archNames = map[string]int{
	"x86_64":  ArchX86_64,
	"x86_32":  ArchX86_32,
	"aarch64": ArchAarch64,
	"riscv64": ArchRiscv64,
	"riscv32": ArchRiscv32,
}

// maxThreads bounds the teacher's own Options.Threads check
// (src/util/args.go's "thread count must be integer in range [1, 64]").
const maxThreads = 64

// Config is spec.md §6's external-interfaces table, field for field:
// workspaceRoot, supportDir, scanForChanges, scanIntervalMS, debugLogging,
// disableExecution, disableOptimizations. TargetArch/Threads/Verbose are
// carried forward from the teacher's util.Options for the (stubbed) native
// lowering and worker-pool sizing surfaces SPEC_FULL.md §1 names.
type Config struct {
	WorkspaceRoot string `mapstructure:"workspaceRoot"`
	SupportDir    string `mapstructure:"supportDir"`

	ScanForChanges bool `mapstructure:"scanForChanges"`
	ScanIntervalMS int  `mapstructure:"scanIntervalMS"`

	DebugLogging         bool `mapstructure:"debugLogging"`
	DisableExecution     bool `mapstructure:"disableExecution"`
	DisableOptimizations bool `mapstructure:"disableOptimizations"`

	TargetArch int  `mapstructure:"targetArch"`
	Threads    int  `mapstructure:"threads"`
	Verbose    bool `mapstructure:"verbose"`
}

// Defaults returns the Config a freshly created viper.Viper (no file, no
// flags, no env bound yet) would produce: nothing scanned, nothing
// disabled, one worker thread.
func Defaults() Config {
	return Config{
		ScanIntervalMS: 1000,
		Threads:        1,
	}
}

// BindDefaults registers Defaults()'s values on v, so a caller that later
// binds flags/env/a config file only overrides what it explicitly sets.
func BindDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("workspaceRoot", d.WorkspaceRoot)
	v.SetDefault("supportDir", d.SupportDir)
	v.SetDefault("scanForChanges", d.ScanForChanges)
	v.SetDefault("scanIntervalMS", d.ScanIntervalMS)
	v.SetDefault("debugLogging", d.DebugLogging)
	v.SetDefault("disableExecution", d.DisableExecution)
	v.SetDefault("disableOptimizations", d.DisableOptimizations)
	v.SetDefault("targetArch", d.TargetArch)
	v.SetDefault("threads", d.Threads)
	v.SetDefault("verbose", d.Verbose)
}

// Load reads v's currently bound sources (file/env/flags, set up by the
// caller via viper's own API) into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshalling")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks Threads/TargetArch/ScanIntervalMS are in range, the way
// the teacher's ParseArgs validated -t/-arch inline while scanning argv.
func (c Config) Validate() error {
	if c.Threads < 0 || c.Threads > maxThreads {
		return errors.Errorf("config: threads must be in range [0, %d], got %d", maxThreads, c.Threads)
	}
	if c.ScanForChanges && c.ScanIntervalMS <= 0 {
		return errors.Errorf("config: scanIntervalMS must be positive when scanForChanges is set, got %d", c.ScanIntervalMS)
	}
	if c.TargetArch < ArchUnknown || c.TargetArch > ArchRiscv32 {
		return errors.Errorf("config: unknown targetArch %d", c.TargetArch)
	}
	return nil
}

// ParseArch resolves a target-architecture identifier the way the
// teacher's "-arch" flag values did ("aarch64", "riscv64", "riscv32",
// "x86_64", "x86_32"), for use by cmd/tsnc's --arch flag binding.
func ParseArch(s string) (int, error) {
	if s == "" {
		return ArchUnknown, nil
	}
	if arch, ok := archNames[strings.ToLower(s)]; ok {
		return arch, nil
	}
	return ArchUnknown, errors.Errorf("config: unexpected architecture identifier: %s", s)
}
