package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/config"
)

func execute(t *testing.T, environ map[string]string, args ...string) (string, error) {
	t.Helper()
	load := func() (*config.Config, error) { return config.LoadFrom(environ) }

	root := newRootCmd(load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func memoryEnv() map[string]string {
	return map[string]string{"STORAGE_DRIVER": "memory", "LOG_LEVEL": "error"}
}

func TestCatalogList(t *testing.T) {
	out, err := execute(t, memoryEnv(), "catalog", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "1990")
}

func TestFlags(t *testing.T) {
	env := memoryEnv()
	env["FEATURE_THESIS_BONUS"] = "25"

	out, err := execute(t, env, "flags")
	require.NoError(t, err)
	assert.Contains(t, out, "thesis_bonus")
	assert.Contains(t, out, "25%")
	assert.Contains(t, out, "random_missions")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	_, err := execute(t, memoryEnv(), "migrate", "status")
	assert.ErrorIs(t, err, errNotPostgres)
}

func TestProfileGet_RequiresIdentityFlag(t *testing.T) {
	_, err := execute(t, memoryEnv(), "profile", "get")
	assert.Error(t, err)
}

func TestProfileGet_UnknownProfile(t *testing.T) {
	_, err := execute(t, memoryEnv(), "profile", "get", "--email", "nobody@example.com")
	assert.Error(t, err)
}

func TestRollover_NothingToClose(t *testing.T) {
	out, err := execute(t, memoryEnv(), "rollover")
	require.NoError(t, err)
	assert.Contains(t, out, "0 cohort(s) closed")
}

func TestConfigErrorsSurface(t *testing.T) {
	_, err := execute(t, map[string]string{"STORAGE_DRIVER": "mongo"}, "flags")
	assert.Error(t, err)
}
