package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dvgov", cmd.Use)
	assert.Contains(t, cmd.Long, "timelock")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"deploy", "invoke", "query", "mine", "trace", "replay", "test", "validate", "serve"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCallCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"invoke", "mine"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"db", "flow", "as"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}

	mine, _, err := cmd.Find([]string{"mine"})
	require.NoError(t, err)
	assert.Equal(t, "zero", mine.Flags().Lookup("as").DefValue)
}

func TestInvalidConfigFile(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/dvgov.yaml", "query", "--list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestDatabasePath(t *testing.T) {
	opts := &RootOptions{}
	path, err := opts.databasePath("explicit.db")
	require.NoError(t, err)
	assert.Equal(t, "explicit.db", path)

	path, err = opts.databasePath("")
	require.NoError(t, err)
	assert.Equal(t, "dvgov.db", path)
}
