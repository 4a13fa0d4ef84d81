package forkcheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyOptions(t *testing.T) {
	var stderrLines []string

	options := applyOptions([]Option{
		WithLogger(NopLogger()),
		WithWorkerPath("/opt/forkcheck-worker"),
		WithWorkerArgs("--verbose"),
		WithWorkerArgs("--trace"),
		WithParentArgs("--inspect=9300"),
		WithEnv(map[string]string{"NODE_ENV": "test"}),
		WithCwd("/src"),
		WithFraming(FramingLengthPrefixed),
		WithSkipVersionCheck(true),
		WithMaxFrameSize(4 << 20),
		WithStderr(func(line string) { stderrLines = append(stderrLines, line) }),
		WithCompilerInfo(CompilerInfo{CompilerPath: "/opt/tsc", Impl: struct{}{}}),
		WithLoaderConfig(LoaderConfig{Instance: "default", IgnoreDiagnostics: []int{2307}}),
		WithCompilerConfig(CompilerConfig{Files: []string{"index.ts"}}),
		WithBuildOptions(map[string]any{"mode": "production"}),
	})

	require.NotNil(t, options.Logger)
	require.Equal(t, "/opt/forkcheck-worker", options.WorkerPath)
	require.Equal(t, []string{"--verbose", "--trace"}, options.WorkerArgs)
	require.Equal(t, []string{"--inspect=9300"}, options.ParentArgs)
	require.Equal(t, "test", options.Env["NODE_ENV"])
	require.Equal(t, "/src", options.Cwd)
	require.Equal(t, "length-prefixed", options.Framing)
	require.True(t, options.SkipVersionCheck)
	require.Equal(t, 4<<20, options.MaxFrameSize)
	require.Equal(t, "/opt/tsc", options.CompilerInfo.CompilerPath)
	require.Equal(t, []int{2307}, options.LoaderConfig.IgnoreDiagnostics)
	require.Equal(t, []string{"index.ts"}, options.CompilerConfig.Files)
	require.Equal(t, "production", options.BuildOptions["mode"])

	options.Stderr("line")
	require.Equal(t, []string{"line"}, stderrLines)
}

func TestApplyOptions_Empty(t *testing.T) {
	options := applyOptions(nil)

	require.NotNil(t, options)
	require.Nil(t, options.Logger)
	require.Nil(t, options.Transport)
	require.Empty(t, options.Framing)
}
