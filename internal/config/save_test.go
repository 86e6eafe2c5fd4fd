package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type savedIPC struct {
	AppName string `yaml:"app_name"`
	IPC     struct {
		SendChannels    []string `yaml:"send_channels"`
		ReceiveChannels []string `yaml:"receive_channels"`
		RemoteURL       string   `yaml:"remote_url"`
	} `yaml:"ipc"`
}

func readSaved(t *testing.T, path string) (savedIPC, string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out savedIPC
	require.NoError(t, yaml.Unmarshal(data, &out))
	return out, string(data)
}

func TestSaveIPCChannels_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erwt.yaml")

	require.NoError(t, SaveIPCChannels(path, []string{"a"}, []string{"b", "c"}))

	saved, _ := readSaved(t, path)
	require.Equal(t, []string{"a"}, saved.IPC.SendChannels)
	require.Equal(t, []string{"b", "c"}, saved.IPC.ReceiveChannels)
}

func TestSaveIPCChannels_PreservesOtherKeysAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erwt.yaml")
	original := `# top comment
app_name: demo
ipc:
  send_channels:
    - old
  remote_url: http://localhost:3000 # remote
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	require.NoError(t, SaveIPCChannels(path, []string{"x", "y"}, nil))

	saved, raw := readSaved(t, path)
	require.Equal(t, "demo", saved.AppName)
	require.Equal(t, []string{"x", "y"}, saved.IPC.SendChannels)
	require.Empty(t, saved.IPC.ReceiveChannels)
	require.Equal(t, "http://localhost:3000", saved.IPC.RemoteURL)
	require.Contains(t, raw, "# top comment")
	require.Contains(t, raw, "# remote")
	require.NotContains(t, raw, "old")
}

func TestSaveIPCChannels_ReplacesScalarIPC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erwt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ipc: none\n"), 0o600))

	require.NoError(t, SaveIPCChannels(path, []string{"a"}, []string{"b"}))

	saved, _ := readSaved(t, path)
	require.Equal(t, []string{"a"}, saved.IPC.SendChannels)
	require.Equal(t, []string{"b"}, saved.IPC.ReceiveChannels)
}

func TestSaveIPCChannels_RejectsNonMappingRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erwt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))

	err := SaveIPCChannels(path, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mapping")
}

func TestSaveIPCChannels_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erwt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ipc: [unclosed\n"), 0o600))

	err := SaveIPCChannels(path, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing config")
}

func TestSaveIPCChannels_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "erwt.yaml")

	require.NoError(t, SaveIPCChannels(path, []string{"a"}, []string{"b"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), ".erwt.yaml.tmp."), "temp file left behind: %s", e.Name())
	}
	require.Len(t, entries, 1)
}
