package version

import (
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	t.Parallel()

	ui := cli.NewMockUi()
	cmd := &Command{
		UI:      ui,
		Version: "0.1.0-dev",
	}
	require.NotEmpty(t, cmd.Help())
	require.Equal(t, "Prints the version", cmd.Synopsis())

	require.Equal(t, 0, cmd.Run(nil))
	require.Equal(t, "routegraph 0.1.0-dev\n", ui.OutputWriter.String())
}
