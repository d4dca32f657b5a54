package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempConfig points the global config at a fresh temp dir for the test.
func useTempConfig(t *testing.T) string {
	t.Helper()
	configDir := filepath.Join(t.TempDir(), "coursechat")
	configPath := filepath.Join(configDir, "config.json")

	oldGetConfigDir := getConfigDirFunc
	oldGetConfigPath := getConfigPathFunc
	getConfigDirFunc = func() (string, error) { return configDir, nil }
	getConfigPathFunc = func() (string, error) { return configPath, nil }
	t.Cleanup(func() {
		getConfigDirFunc = oldGetConfigDir
		getConfigPathFunc = oldGetConfigPath
	})
	return configPath
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, filepath.Join("coursechat", "config.json")))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	useTempConfig(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	configPath := useTempConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("{invalid json}"), 0600))

	config, err := LoadGlobalConfig()
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSaveGlobalConfig_RoundTrip(t *testing.T) {
	configPath := useTempConfig(t)

	config := &GlobalConfig{
		APIURL:     "http://courses.internal:8000",
		AdminToken: "s3cret",
	}
	require.NoError(t, SaveGlobalConfig(config))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, config, loaded)

	assert.Error(t, SaveGlobalConfig(nil))
}

func TestSessionID_Persistence(t *testing.T) {
	useTempConfig(t)
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://x"}))

	assert.Empty(t, SavedSessionID())
	require.NoError(t, SaveSessionID("sess-1"))
	assert.Equal(t, "sess-1", SavedSessionID())

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://x", config.APIURL, "saving the session keeps other settings")

	require.NoError(t, SaveSessionID(""))
	assert.Empty(t, SavedSessionID())
}

func TestResolveSetting(t *testing.T) {
	t.Setenv("COURSECHAT_TEST_SETTING", "from-env")

	v, src := resolveSetting("from-flag", "COURSECHAT_TEST_SETTING", "from-config", "default")
	assert.Equal(t, "from-flag", v)
	assert.Equal(t, SourceFlag, src)

	v, src = resolveSetting("", "COURSECHAT_TEST_SETTING", "from-config", "default")
	assert.Equal(t, "from-env", v)
	assert.Equal(t, SourceEnv, src)

	v, src = resolveSetting("", "COURSECHAT_TEST_UNSET", "from-config", "default")
	assert.Equal(t, "from-config", v)
	assert.Equal(t, SourceGlobalConfig, src)

	v, src = resolveSetting("", "COURSECHAT_TEST_UNSET", "", "default")
	assert.Equal(t, "default", v)
	assert.Equal(t, SourceDefault, src)
}
