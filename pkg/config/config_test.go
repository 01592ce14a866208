package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-unlearning-service/pkg/experiment"
	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

func TestNewConfig_DefaultsMatchSettings(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Validate())

	got, err := c.ExperimentSettings(zerolog.Nop())
	require.NoError(t, err)

	want := experiment.DefaultSettings()
	got.Model.Logger = zerolog.Logger{}
	want.Model.Logger = zerolog.Logger{}
	assert.Equal(t, want, got)

	assert.Equal(t, ":8080", c.ServerAddress())
	assert.Equal(t, 2, c.MaxWorkers())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gif.yaml")
	body := `
unlearn_task: edge
unlearn_ratio: 0.05
method: if
iteration: 50
solver: CG
num_runs: 3
seed: 42
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	c := NewConfig()
	require.NoError(t, c.LoadFromFile(path))

	s, err := c.ExperimentSettings(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, models.TaskEdge, s.Task)
	assert.Equal(t, 0.05, s.Ratio)
	assert.Equal(t, gif.MethodIF, s.Method)
	assert.Equal(t, 50, s.Iterations)
	assert.Equal(t, "cg", s.Solver)
	assert.Equal(t, 3, s.NumRuns)
	assert.Equal(t, uint64(42), s.Seed)

	assert.Error(t, NewConfig().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GIF_UNLEARN_RATIO", "0.3")
	t.Setenv("GIF_DAMP", "0.01")

	c := NewConfig()
	assert.Equal(t, 0.3, c.UnlearnRatio())
	assert.Equal(t, 0.01, c.Damp())
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	RegisterServerFlags(fs)
	require.NoError(t, fs.Parse([]string{"--unlearn_task=feature", "--scale=1000", "--max_workers=8"}))

	c := NewConfig()
	require.NoError(t, c.BindFlags(fs))

	assert.Equal(t, "feature", c.UnlearnTask())
	assert.Equal(t, 1000.0, c.Scale())
	assert.Equal(t, 8, c.MaxWorkers())
	assert.Equal(t, 100, c.Iteration())
}

func TestValidate_AggregatesErrors(t *testing.T) {
	c := NewConfig()
	c.Set(KeyUnlearnTask, "vertex")
	c.Set(KeyMethod, "newton")
	c.Set(KeyUnlearnRatio, 1.5)
	c.Set(KeyMaxWorkers, 0)
	c.Set(KeyLogLevel, "loud")

	err := c.Validate()
	var ve models.ValidationErrors
	require.ErrorAs(t, err, &ve)

	fields := make([]string, len(ve))
	for i, e := range ve {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{KeyUnlearnTask, KeyMethod, KeyUnlearnRatio, KeyMaxWorkers, KeyLogLevel}, fields)
}

func TestWithOverrides(t *testing.T) {
	base := NewConfig()

	job, err := base.WithOverrides(map[string]interface{}{
		"unlearn_task": "edge",
		"iteration":    float64(10), // JSON numbers decode as float64
		"Scale":        2000.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "edge", job.UnlearnTask())
	assert.Equal(t, 10, job.Iteration())
	assert.Equal(t, 2000.0, job.Scale())

	// base is untouched
	assert.Equal(t, "node", base.UnlearnTask())

	_, err = base.WithOverrides(map[string]interface{}{"server_address": ":9090", "bogus": 1})
	var fieldErr models.ValidationError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "bogus,server_address", fieldErr.Value)
}
