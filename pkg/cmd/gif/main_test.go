package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateThenRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "toy")

	_, err := execute(t, "generate", "--dataset_dir", dir, "--nodes", "60", "--p_in", "0.2", "--log_level", "error")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "graph.edgelist"))

	out, err := execute(t, "run",
		"--dataset_dir", dir,
		"--unlearn_task", "edge",
		"--unlearn_ratio", "0.05",
		"--test_ratio", "0.25",
		"--epochs", "30",
		"--iteration", "10",
		"--damp", "0.01",
		"--scale", "10000",
		"--log_level", "error",
	)
	require.NoError(t, err)

	var report struct {
		ID       string `yaml:"id"`
		Dataset  string `yaml:"dataset"`
		TestSize int    `yaml:"test_size"`
		Runs     []struct {
			F1Original float64 `yaml:"f1_original"`
		} `yaml:"runs"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "toy", report.Dataset)
	assert.Equal(t, 15, report.TestSize)
	assert.Len(t, report.Runs, 1)

	assert.FileExists(t, filepath.Join(dir, "train_test_split.yaml"))
	reports, err := filepath.Glob(filepath.Join(dir, "report_*.yaml"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestRun_ConfigFileAndValidation(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gif.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("unlearn_task: vertex\n"), 0644))

	_, err := execute(t, "run", "--config", cfgPath, "--dataset_dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unlearn_task")

	_, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
