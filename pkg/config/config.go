// Package config loads the YAML configuration of the console and the
// reference controller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/scontrol/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConsolePath is read when $SCONTROL_CONFIG is unset
	DefaultConsolePath = "/etc/slurm/scontrol.yaml"
	DefaultController  = "127.0.0.1:6817"
	DefaultTimeout     = 10 * time.Second
	DefaultSlurmConf   = "/etc/slurm/slurm.conf"

	EnvConsoleConfig = "SCONTROL_CONFIG"
	EnvController    = "SCONTROL_CONTROLLER"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Limit is a count that also accepts INFINITE
type Limit uint32

// UnmarshalYAML accepts a number or the word INFINITE
func (l *Limit) UnmarshalYAML(value *yaml.Node) error {
	if strings.EqualFold(value.Value, "INFINITE") {
		*l = Limit(types.Infinite)
		return nil
	}
	n, err := strconv.ParseUint(value.Value, 10, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid limit %q", value.Line, value.Value)
	}
	*l = Limit(n)
	return nil
}

// LogConfig selects log level and format
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Console is the scontrol configuration file
type Console struct {
	Controller  string    `yaml:"controller"`
	Timeout     Duration  `yaml:"timeout"`
	Prompt      string    `yaml:"prompt"`
	HistoryFile string    `yaml:"history_file"`
	SlurmConf   string    `yaml:"slurm_conf"`
	Log         LogConfig `yaml:"log"`
}

// DefaultConsole returns the settings used when no file exists
func DefaultConsole() *Console {
	return &Console{
		Controller: DefaultController,
		Timeout:    Duration{DefaultTimeout},
		Prompt:     "scontrol: ",
		SlurmConf:  DefaultSlurmConf,
		Log:        LogConfig{Level: "warn"},
	}
}

// ConsolePath returns the console config location
func ConsolePath() string {
	if p := os.Getenv(EnvConsoleConfig); p != "" {
		return p
	}
	return DefaultConsolePath
}

// LoadConsole reads path over the defaults. A missing file is not an error.
func LoadConsole(path string) (*Console, error) {
	cfg := DefaultConsole()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if addr := os.Getenv(EnvController); addr != "" {
		cfg.Controller = addr
	}
	if cfg.Timeout.Duration <= 0 {
		cfg.Timeout.Duration = DefaultTimeout
	}
	return cfg, nil
}

// NodeConfig defines one or more nodes sharing a hardware description
type NodeConfig struct {
	// Names is a hostlist expression such as lx[01-10]
	Names      string `yaml:"names"`
	CPUs       uint32 `yaml:"cpus"`
	RealMemory uint32 `yaml:"real_memory"`
	TmpDisk    uint32 `yaml:"tmp_disk"`
	Weight     uint32 `yaml:"weight"`
	Features   string `yaml:"features"`
	State      string `yaml:"state"`
	// Port is the slurmd port probed on every node. Zero disables probing.
	Port uint16 `yaml:"port"`
}

// PingConfig controls slurmd probing
type PingConfig struct {
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	Retries  int      `yaml:"retries"`
}

// PartitionConfig defines a partition
type PartitionConfig struct {
	Name        string `yaml:"name"`
	Nodes       string `yaml:"nodes"`
	Default     bool   `yaml:"default"`
	RootOnly    bool   `yaml:"root_only"`
	Shared      string `yaml:"shared"`
	State       string `yaml:"state"`
	MaxTime     *Limit `yaml:"max_time"`
	MaxNodes    *Limit `yaml:"max_nodes"`
	AllowGroups string `yaml:"allow_groups"`
}

// JobConfig seeds a job at first start
type JobConfig struct {
	JobID     uint32 `yaml:"job_id"`
	UserID    uint32 `yaml:"user_id"`
	Name      string `yaml:"name"`
	State     string `yaml:"state"`
	Partition string `yaml:"partition"`
	Nodes     string `yaml:"nodes"`
	TimeLimit *Limit `yaml:"time_limit"`
	Priority  uint32 `yaml:"priority"`
	NumProcs  uint32 `yaml:"num_procs"`
	MinNodes  uint32 `yaml:"min_nodes"`
}

// StepConfig seeds a job step at first start
type StepConfig struct {
	JobID  uint32  `yaml:"job_id"`
	StepID uint32  `yaml:"step_id"`
	UserID uint32  `yaml:"user_id"`
	Nodes  string  `yaml:"nodes"`
	Pids   []int32 `yaml:"pids"`
}

// Controller is the slurmctld configuration file
type Controller struct {
	ClusterName      string            `yaml:"cluster_name"`
	ControlMachine   string            `yaml:"control_machine"`
	BackupController string            `yaml:"backup_controller"`
	Listen           string            `yaml:"listen"`
	MetricsAddr      string            `yaml:"metrics_addr"`
	DataDir          string            `yaml:"data_dir"`
	Parameters       map[string]string `yaml:"parameters"`
	Nodes            []NodeConfig      `yaml:"nodes"`
	Partitions       []PartitionConfig `yaml:"partitions"`
	Jobs             []JobConfig       `yaml:"jobs"`
	Steps            []StepConfig      `yaml:"steps"`
	Ping             PingConfig        `yaml:"ping"`
	Log              LogConfig         `yaml:"log"`
}

// LoadController reads and validates a controller config file
func LoadController(path string) (*Controller, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseController(data)
}

// ParseController decodes a controller config and fills defaults
func ParseController(data []byte) (*Controller, error) {
	cfg := &Controller{
		ClusterName: "linux",
		Listen:      DefaultController,
		DataDir:     "/var/lib/slurmctld",
		Ping: PingConfig{
			Interval: Duration{30 * time.Second},
			Timeout:  Duration{5 * time.Second},
			Retries:  3,
		},
		Log: LogConfig{Level: "info"},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse controller config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks names and enumerated values
func (c *Controller) Validate() error {
	for i, n := range c.Nodes {
		if n.Names == "" {
			return fmt.Errorf("nodes[%d]: names is required", i)
		}
		if n.State != "" {
			if _, ok := types.ParseNodeState(n.State); !ok {
				return fmt.Errorf("nodes[%d]: invalid state %q", i, n.State)
			}
		}
	}

	seen := make(map[string]bool)
	for i, p := range c.Partitions {
		if p.Name == "" {
			return fmt.Errorf("partitions[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("partitions[%d]: duplicate partition %s", i, p.Name)
		}
		seen[p.Name] = true
		if p.Shared != "" && !containsFold(types.PartitionSharedNames(), p.Shared) {
			return fmt.Errorf("partition %s: invalid shared %q", p.Name, p.Shared)
		}
		if p.State != "" && !containsFold([]string{"UP", "DOWN"}, p.State) {
			return fmt.Errorf("partition %s: invalid state %q", p.Name, p.State)
		}
	}

	if c.Ping.Interval.Duration <= 0 || c.Ping.Timeout.Duration <= 0 {
		return fmt.Errorf("ping: interval and timeout must be positive")
	}
	if c.Ping.Retries < 1 {
		return fmt.Errorf("ping: retries must be at least 1")
	}

	for i, j := range c.Jobs {
		if j.JobID == 0 {
			return fmt.Errorf("jobs[%d]: job_id is required", i)
		}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
