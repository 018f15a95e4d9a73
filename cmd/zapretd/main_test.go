package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"zapretd/internal/domain"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCLIProfile(t *testing.T, root, folder, name string) string {
	t.Helper()
	dir := filepath.Join(root, domain.DefaultProfilesDirName, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+domain.DefaultProfileExtension)
	require.NoError(t, os.WriteFile(path, []byte("--wf-udp=443\n"), 0o644))
	return path
}

func TestProfilesCommandJSON(t *testing.T) {
	root := t.TempDir()
	writeCLIProfile(t, root, "gaming", "game_fix")
	writeCLIProfile(t, root, "discord", "general")

	out, err := executeCommand(t, "--root", root, "--log-level", "error", "profiles", "--json")
	require.NoError(t, err)

	var views []profileView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	require.Equal(t, "discord", views[0].Category)
	require.Equal(t, "gaming", views[1].Category)
}

func TestProfilesCommandCategoryYAML(t *testing.T) {
	root := t.TempDir()
	writeCLIProfile(t, root, "gaming", "game_fix")
	writeCLIProfile(t, root, "discord", "general")

	out, err := executeCommand(t, "--root", root, "--log-level", "error", "-o", "yaml", "profiles", "--category", "gaming")
	require.NoError(t, err)

	var views []profileView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	require.Equal(t, "gaming", views[0].Category)
}

func TestProfilesCommandUnknownCategory(t *testing.T) {
	_, err := executeCommand(t, "--root", t.TempDir(), "--log-level", "error", "profiles", "--category", "music")
	require.Error(t, err)
	require.Equal(t, exitUsage, exitCodeFor(err))
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := executeCommand(t, "--root", t.TempDir(), "-o", "xml", "profiles")
	var exitErr exitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, exitUsage, exitErr.code)
}

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, exitPrecondition, exitCodeFor(domain.ErrWorkerNotFound))
	require.Equal(t, exitUnavailable, exitCodeFor(domain.ErrAlreadyRunning))
	require.Equal(t, exitUsage, exitCodeFor(domain.ErrNoProfilesSelected))
	require.Equal(t, exitFailure, exitCodeFor(errors.New("boom")))
}

func TestWriteStructuredText(t *testing.T) {
	var buf bytes.Buffer
	handled, err := writeStructured(&buf, outputText, []string{"a"})
	require.NoError(t, err)
	require.False(t, handled)
	require.Zero(t, buf.Len())
}
