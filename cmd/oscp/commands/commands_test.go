package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oscp/cmd/oscp/handlers"
)

func TestRootCommands(t *testing.T) {
	t.Parallel()
	root := Root()

	tests := []struct {
		path []string
	}{
		{path: []string{"vlan", "set"}},
		{path: []string{"vlan", "remove"}},
		{path: []string{"vlan", "remove-all"}},
		{path: []string{"apply"}},
		{path: []string{"instance", "deploy"}},
		{path: []string{"instance", "restore"}},
		{path: []string{"instance", "delete"}},
		{path: []string{"instance", "power-on"}},
		{path: []string{"instance", "power-off"}},
		{path: []string{"instance", "save"}},
		{path: []string{"instance", "delete-saved"}},
		{path: []string{"instance", "refresh-ip"}},
		{path: []string{"serve"}},
		{path: []string{"validate"}},
		{path: []string{"version"}},
	}

	for _, tt := range tests {
		cmd, rest, err := root.Find(tt.path)
		require.NoError(t, err, tt.path)
		assert.Empty(t, rest)
		assert.Equal(t, tt.path[len(tt.path)-1], cmd.Name())
	}
}

func TestPersistentFlags(t *testing.T) {
	t.Parallel()
	root := Root()

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, root.PersistentFlags().Lookup("json-logs"))
}

func TestVLANSetFlags(t *testing.T) {
	t.Parallel()
	cmd := vlanSet(&handlers.Options{})

	mode := cmd.Flags().Lookup("mode")
	require.NotNil(t, mode)
	assert.Equal(t, "access", mode.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("qinq"))
	assert.Nil(t, vlanRemove(&handlers.Options{}).Flags().Lookup("qinq"))
}

func TestArgumentValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "set without vlan", args: []string{"vlan", "set", "i-1"}},
		{name: "set with bad vlan", args: []string{"vlan", "set", "i-1", "ten"}},
		{name: "apply without file", args: []string{"apply"}},
		{name: "delete-saved without ids", args: []string{"instance", "delete-saved"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := Root()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			assert.Error(t, root.Execute())
		})
	}
}

func TestApplyFileFlagRequired(t *testing.T) {
	t.Parallel()
	cmd := Apply(&handlers.Options{})

	flag := cmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	_, required := flag.Annotations[cobra.BashCompOneRequiredFlag]
	assert.True(t, required)
}

func TestServeFlags(t *testing.T) {
	t.Parallel()
	cmd := Serve(&handlers.Options{})

	assert.NotNil(t, cmd.Flags().Lookup("listen"))
	skip := cmd.Flags().Lookup("skip-preflight")
	require.NotNil(t, skip)
	assert.Equal(t, "false", skip.DefValue)
}

func TestVersionOutput(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	t.Cleanup(func() { SetVersionInfo(origVersion, origCommit, origDate) })
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	var out bytes.Buffer
	cmd := Version()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "oscp 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
}
