package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/wagiedev/forkcheck-go/internal/launch"
	"github.com/wagiedev/forkcheck-go/internal/protocol"
)

func TestVersionOutput(t *testing.T) {
	var out bytes.Buffer

	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"forkcheck-worker", "--version"}))
	assert.Equal(t, "forkcheck-worker version "+protocol.Version+"\n", out.String())
}

func TestRejectsUnknownFraming(t *testing.T) {
	app := newApp()
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run([]string{"forkcheck-worker", "--framing=xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestAcceptsForwardedDebugArgs(t *testing.T) {
	args := launch.DebugArgs([]string{"--inspect=9000"})
	require.Equal(t, []string{"--inspect=9001"}, args)

	app := newApp()
	app.Action = func(c *cli.Context) error {
		assert.Equal(t, 9001, c.Int("inspect"))

		return nil
	}

	require.NoError(t, app.Run(append([]string{"forkcheck-worker"}, args...)))
}
