package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Runs           int           `yaml:"runs" validate:"min=1"`
	MaxRetries     int           `yaml:"max_retries" validate:"min=1"`
	OutputPrefix   string        `yaml:"output_prefix" validate:"required"`
	OutputDir      string        `yaml:"output_dir" validate:"required"`
	Eval           string        `yaml:"eval" validate:"required"`
	Command        []string      `yaml:"command" validate:"min=1,dive,required"`
	RequiredEnv    []string      `yaml:"required_env" validate:"dive,required"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"min=0"`
	Ledger         string        `yaml:"ledger"`
	Secrets        Secrets       `yaml:"secrets"`
	Executor       Executor      `yaml:"executor"`
	Report         Report        `yaml:"report"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

type Executor struct {
	Kind  string `yaml:"kind" validate:"oneof=local docker"`
	Image string `yaml:"image" validate:"required_if=Kind docker"`
	// CPUs and Memory limit the container; zero and empty mean unlimited.
	// Memory takes docker's size notation ("512m", "2g").
	CPUs   float64 `yaml:"cpus" validate:"min=0"`
	Memory string  `yaml:"memory"`
	Mounts []Mount `yaml:"mounts" validate:"dive"`
}

// Mount is an extra bind mount for the docker executor.
type Mount struct {
	Source   string `yaml:"source" validate:"required"`
	Target   string `yaml:"target" validate:"required"`
	ReadOnly bool   `yaml:"read_only"`
}

// MemoryBytes parses Memory. An empty value is 0.
func (e Executor) MemoryBytes() (int64, error) {
	if e.Memory == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(e.Memory)
	if err != nil {
		return 0, fmt.Errorf("executor memory %q: %w", e.Memory, err)
	}
	return n, nil
}

type Report struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
	Output  string `yaml:"output" validate:"required"`
	Format  string `yaml:"format" validate:"oneof=table markdown json none"`
	Open    bool   `yaml:"open"`
}

// Placeholders substituted into Command for each run.
const (
	PlaceholderEval   = "{eval}"
	PlaceholderOutput = "{output}"
	PlaceholderRun    = "{run}"
)

func Default() *Config {
	return &Config{
		Runs:         10,
		MaxRetries:   3,
		OutputPrefix: "benchmarks-sample",
		OutputDir:    ".",
		Eval:         "DataDog/datadog-lambda-python",
		Command: []string{
			"bun", "run", "cli.ts", "opencode",
			"--eval", PlaceholderEval,
			"--output", PlaceholderOutput,
		},
		RequiredEnv: []string{"OPENCODE_API_KEY", "GITHUB_TOKEN"},
		Executor:    Executor{Kind: "local"},
		Report: Report{
			Output: "benchmark_instability.png",
			Format: "table",
			Open:   true,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// The result is not validated; callers apply their overrides first and then
// call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigError collects every problem found in one pass.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required environment variable(s): "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid field(s): "+strings.Join(e.Invalid, "; "))
	}
	return strings.Join(parts, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural fields and reports all violations at once.
func (c *Config) Validate() error {
	cerr := &ConfigError{}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}
	if _, err := c.Executor.MemoryBytes(); err != nil {
		cerr.Invalid = append(cerr.Invalid, "Config.Executor.Memory: "+err.Error())
	}
	if len(cerr.Invalid) == 0 {
		return nil
	}
	return cerr
}

// CheckEnvironment reports every RequiredEnv name that has no non-empty
// value in lookup or in the secrets env file.
func (c *Config) CheckEnvironment(lookup func(string) (string, bool)) error {
	secrets, err := c.SecretValues()
	if err != nil {
		return err
	}
	var missing []string
	for _, name := range c.RequiredEnv {
		v, _ := lookup(name)
		if v == "" {
			v = secrets[name]
		}
		if err := validate.Var(v, "required"); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ConfigError{Missing: missing}
}

// SecretValues reads the secrets env file, if one is configured.
func (c *Config) SecretValues() (map[string]string, error) {
	if c.Secrets.EnvFile == "" {
		return map[string]string{}, nil
	}
	vals, err := godotenv.Read(c.Secrets.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("reading secrets env file %s: %w", c.Secrets.EnvFile, err)
	}
	return vals, nil
}

// CommandEnv is the process environment plus any secrets the process does
// not already define.
func (c *Config) CommandEnv(environ []string) ([]string, error) {
	secrets, err := c.SecretValues()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			set[kv[:i]] = kv[i+1:] != ""
		}
	}
	env := append([]string(nil), environ...)
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !set[k] {
			env = append(env, k+"="+secrets[k])
		}
	}
	return env, nil
}

// BuildCommand expands the command template for one run.
func (c *Config) BuildCommand(output string, runIndex int) []string {
	r := strings.NewReplacer(
		PlaceholderEval, c.Eval,
		PlaceholderOutput, output,
		PlaceholderRun, strconv.Itoa(runIndex),
	)
	args := make([]string, len(c.Command))
	for i, a := range c.Command {
		args[i] = r.Replace(a)
	}
	return args
}
