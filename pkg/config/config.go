// Package config manages the service and experiment configuration using Viper.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gilchrisn/graph-unlearning-service/pkg/experiment"
	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/model"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// EnvPrefix namespaces environment overrides, e.g. GIF_UNLEARN_RATIO
const EnvPrefix = "GIF"

// Experiment keys. These double as CLI flag names and job override keys.
const (
	KeyTargetModel     = "target_model"
	KeyUnlearnTask     = "unlearn_task"
	KeyUnlearnRatio    = "unlearn_ratio"
	KeyIsSplit         = "is_split"
	KeyTestRatio       = "test_ratio"
	KeyMethod          = "method"
	KeyIteration       = "iteration"
	KeyDamp            = "damp"
	KeyScale           = "scale"
	KeyNumRuns         = "num_runs"
	KeySolver          = "solver"
	KeyResidualTol     = "residual_tol"
	KeyParallelRuns    = "parallel_runs"
	KeySeed            = "seed"
	KeyEpochs          = "epochs"
	KeyLearningRate    = "learning_rate"
	KeyWeightDecay     = "weight_decay"
	KeyPropagationHops = "propagation_hops"
)

// Service keys
const (
	KeyDatasetDir    = "dataset_dir"
	KeyLogLevel      = "log_level"
	KeyServerAddress = "server_address"
	KeyMaxWorkers    = "max_workers"
)

// experimentKeys may be overridden per job
var experimentKeys = []string{
	KeyTargetModel, KeyUnlearnTask, KeyUnlearnRatio, KeyIsSplit, KeyTestRatio,
	KeyMethod, KeyIteration, KeyDamp, KeyScale, KeyNumRuns,
	KeySolver, KeyResidualTol, KeyParallelRuns, KeySeed,
	KeyEpochs, KeyLearningRate, KeyWeightDecay, KeyPropagationHops,
}

// Config manages configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()
	d := experiment.DefaultSettings()

	// Experiment parameters
	v.SetDefault(KeyTargetModel, d.TargetModel)
	v.SetDefault(KeyUnlearnTask, string(d.Task))
	v.SetDefault(KeyUnlearnRatio, d.Ratio)
	v.SetDefault(KeyIsSplit, d.IsSplit)
	v.SetDefault(KeyTestRatio, d.TestRatio)
	v.SetDefault(KeyNumRuns, d.NumRuns)
	v.SetDefault(KeyParallelRuns, d.ParallelRuns)
	v.SetDefault(KeySeed, d.Seed)

	// Influence approximation
	v.SetDefault(KeyMethod, string(d.Method))
	v.SetDefault(KeyIteration, d.Iterations)
	v.SetDefault(KeyDamp, d.Damp)
	v.SetDefault(KeyScale, d.Scale)
	v.SetDefault(KeySolver, d.Solver)
	v.SetDefault(KeyResidualTol, d.ResidualTol)

	// Model training
	v.SetDefault(KeyEpochs, d.Model.Epochs)
	v.SetDefault(KeyLearningRate, d.Model.LearningRate)
	v.SetDefault(KeyWeightDecay, d.Model.WeightDecay)
	v.SetDefault(KeyPropagationHops, d.Model.PropagationHops)

	// Service
	v.SetDefault(KeyDatasetDir, "./data/synthetic")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyServerAddress, ":8080")
	v.SetDefault(KeyMaxWorkers, 2)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// RegisterFlags declares one flag per configuration key on fs
func RegisterFlags(fs *pflag.FlagSet) {
	d := experiment.DefaultSettings()

	fs.String(KeyTargetModel, d.TargetModel, "model architecture to train")
	fs.String(KeyUnlearnTask, string(d.Task), "unlearning task: node, edge or feature")
	fs.Float64(KeyUnlearnRatio, d.Ratio, "fraction of training nodes or edges to unlearn")
	fs.Bool(KeyIsSplit, d.IsSplit, "compute and save a fresh train/test split")
	fs.Float64(KeyTestRatio, d.TestRatio, "fraction of nodes held out for testing")
	fs.String(KeyMethod, string(d.Method), "influence method: GIF or IF")
	fs.Int(KeyIteration, d.Iterations, "fixed-point iterations")
	fs.Float64(KeyDamp, d.Damp, "damping factor")
	fs.Float64(KeyScale, d.Scale, "Hessian scale")
	fs.Int(KeyNumRuns, d.NumRuns, "number of independent runs")
	fs.String(KeySolver, d.Solver, "fixed-point solver: iterative or cg")
	fs.Float64(KeyResidualTol, d.ResidualTol, "squared residual tolerance of the cg solver")
	fs.Int(KeyParallelRuns, d.ParallelRuns, "runs executed concurrently")
	fs.Uint64(KeySeed, d.Seed, "base random seed")
	fs.Int(KeyEpochs, d.Model.Epochs, "training epochs")
	fs.Float64(KeyLearningRate, d.Model.LearningRate, "training learning rate")
	fs.Float64(KeyWeightDecay, d.Model.WeightDecay, "L2 weight decay")
	fs.Int(KeyPropagationHops, d.Model.PropagationHops, "feature propagation hops")
	fs.String(KeyDatasetDir, "./data/synthetic", "dataset directory")
	fs.String(KeyLogLevel, "info", "log level")
}

// RegisterServerFlags declares the HTTP service flags on fs
func RegisterServerFlags(fs *pflag.FlagSet) {
	fs.String(KeyServerAddress, ":8080", "HTTP listen address")
	fs.Int(KeyMaxWorkers, 2, "maximum concurrent jobs")
}

// BindFlags makes explicitly set flags take precedence over file and env values
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	return c.v.BindPFlags(fs)
}

// Getters for experiment parameters
func (c *Config) TargetModel() string { return c.v.GetString(KeyTargetModel) }
func (c *Config) UnlearnTask() string { return c.v.GetString(KeyUnlearnTask) }
func (c *Config) UnlearnRatio() float64 { return c.v.GetFloat64(KeyUnlearnRatio) }
func (c *Config) IsSplit() bool { return c.v.GetBool(KeyIsSplit) }
func (c *Config) TestRatio() float64 { return c.v.GetFloat64(KeyTestRatio) }
func (c *Config) Method() string { return c.v.GetString(KeyMethod) }
func (c *Config) Iteration() int { return c.v.GetInt(KeyIteration) }
func (c *Config) Damp() float64 { return c.v.GetFloat64(KeyDamp) }
func (c *Config) Scale() float64 { return c.v.GetFloat64(KeyScale) }
func (c *Config) NumRuns() int { return c.v.GetInt(KeyNumRuns) }
func (c *Config) Solver() string { return c.v.GetString(KeySolver) }
func (c *Config) ResidualTol() float64 { return c.v.GetFloat64(KeyResidualTol) }
func (c *Config) ParallelRuns() int { return c.v.GetInt(KeyParallelRuns) }
func (c *Config) Seed() uint64 { return c.v.GetUint64(KeySeed) }
func (c *Config) Epochs() int { return c.v.GetInt(KeyEpochs) }
func (c *Config) LearningRate() float64 { return c.v.GetFloat64(KeyLearningRate) }
func (c *Config) WeightDecay() float64 { return c.v.GetFloat64(KeyWeightDecay) }
func (c *Config) PropagationHops() int { return c.v.GetInt(KeyPropagationHops) }

func (c *Config) DatasetDir() string { return c.v.GetString(KeyDatasetDir) }
func (c *Config) LogLevel() string { return c.v.GetString(KeyLogLevel) }
func (c *Config) ServerAddress() string { return c.v.GetString(KeyServerAddress) }
func (c *Config) MaxWorkers() int { return c.v.GetInt(KeyMaxWorkers) }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// WithOverrides returns a copy of the configuration with per-job overrides applied.
// Only experiment keys may be overridden.
func (c *Config) WithOverrides(overrides map[string]interface{}) (*Config, error) {
	allowed := make(map[string]bool, len(experimentKeys))
	for _, k := range experimentKeys {
		allowed[k] = true
	}

	var unknown []string
	for k := range overrides {
		if !allowed[strings.ToLower(k)] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, models.ValidationError{
			Field:   "overrides",
			Message: "unknown configuration keys",
			Value:   strings.Join(unknown, ","),
		}
	}

	clone := NewConfig()
	for _, k := range c.v.AllKeys() {
		clone.v.Set(k, c.v.Get(k))
	}
	for k, val := range overrides {
		clone.v.Set(strings.ToLower(k), val)
	}
	return clone, nil
}

// ExperimentSettings converts the configuration into validated experiment settings
func (c *Config) ExperimentSettings(logger zerolog.Logger) (experiment.Settings, error) {
	var errs models.ValidationErrors

	task, err := models.ParseTask(c.UnlearnTask())
	if err != nil {
		errs = append(errs, models.ValidationError{Field: KeyUnlearnTask, Message: "must be one of node, edge, feature", Value: c.UnlearnTask()})
	}
	method, err := gif.ParseMethod(c.Method())
	if err != nil {
		errs = append(errs, models.ValidationError{Field: KeyMethod, Message: "must be GIF or IF", Value: c.Method()})
	}

	s := experiment.Settings{
		TargetModel:  c.TargetModel(),
		Task:         task,
		Ratio:        c.UnlearnRatio(),
		IsSplit:      c.IsSplit(),
		TestRatio:    c.TestRatio(),
		Method:       method,
		Iterations:   c.Iteration(),
		Damp:         c.Damp(),
		Scale:        c.Scale(),
		Solver:       strings.ToLower(c.Solver()),
		ResidualTol:  c.ResidualTol(),
		NumRuns:      c.NumRuns(),
		ParallelRuns: c.ParallelRuns(),
		Seed:         c.Seed(),
		Model: model.Options{
			Epochs:          c.Epochs(),
			LearningRate:    c.LearningRate(),
			WeightDecay:     c.WeightDecay(),
			PropagationHops: c.PropagationHops(),
			Logger:          logger,
		},
	}

	if len(errs) > 0 {
		// Parse failures already cover task and method
		if err := s.Validate(); err != nil {
			if ve, ok := err.(models.ValidationErrors); ok {
				for _, e := range ve {
					if e.Field != KeyUnlearnTask && e.Field != KeyMethod {
						errs = append(errs, e)
					}
				}
			}
		}
		return s, errs
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	var errs models.ValidationErrors

	if _, err := c.ExperimentSettings(zerolog.Nop()); err != nil {
		if ve, ok := err.(models.ValidationErrors); ok {
			errs = append(errs, ve...)
		} else {
			return err
		}
	}
	if c.DatasetDir() == "" {
		errs = append(errs, models.ValidationError{Field: KeyDatasetDir, Message: "cannot be empty"})
	}
	if c.MaxWorkers() < 1 {
		errs = append(errs, models.ValidationError{Field: KeyMaxWorkers, Message: "must be a positive integer", Value: fmt.Sprintf("%d", c.MaxWorkers())})
	}
	if _, err := zerolog.ParseLevel(c.LogLevel()); err != nil {
		errs = append(errs, models.ValidationError{Field: KeyLogLevel, Message: "unknown log level", Value: c.LogLevel()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "gif").Logger()
}
