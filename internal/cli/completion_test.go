package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionScripts(t *testing.T) {
	tests := []struct {
		shell string
		want  []string
	}{
		{shell: "bash", want: []string{"# bash completion for dutctl", "__start_dutctl", "__completeNoDesc"}},
		{shell: "zsh", want: []string{"#compdef dutctl", "_dutctl()"}},
		{shell: "fish", want: []string{"fish completion for dutctl", "complete -c dutctl"}},
		{shell: "powershell", want: []string{"Register-ArgumentCompleter"}},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			h := newHarness(t)

			out, _, err := h.run(t, "", "completion", tt.shell)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "", "completion", "tcsh")
	assert.Error(t, err)

	_, _, err = h.run(t, "", "completion")
	assert.Error(t, err)
}

func TestCompletionBashSyntaxValid(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "", "completion", "bash")
	require.NoError(t, err)

	assert.Equal(t, strings.Count(out, "{"), strings.Count(out, "}"), "braces should be balanced")
	assert.Contains(t, out, "complete -o default -F __start_dutctl dutctl")
}

func TestCompletionCommandValidArgs(t *testing.T) {
	assert.ElementsMatch(t, []string{"bash", "zsh", "fish", "powershell"}, completionCmd.ValidArgs)
}

func TestDUTCommandsRegistered(t *testing.T) {
	want := []string{"arc-info", "discover", "do", "info", "kernel-config", "list", "monitor", "pull", "push", "shell", "vnc"}

	var got []string
	for _, c := range dutCmd.Commands() {
		got = append(got, c.Name())
	}
	assert.ElementsMatch(t, want, got)

	for _, name := range []string{"do", "info", "shell", "push", "pull", "vnc"} {
		cmd, _, err := dutCmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, cmd.Flags().Lookup("dut"), "%s takes --dut", name)
	}
}

func TestCompletesRegisteredIDs(t *testing.T) {
	h := newHarness(t)
	h.register(t, "eve_NXAB12", "10.0.0.1")
	h.register(t, "eve_NXAB13", "10.0.0.2")
	h.register(t, "kled_QQ4", "10.0.0.3")

	out, _, err := h.run(t, "", cobra.ShellCompNoDescRequestCmd, "dut", "info", "--dut", "eve")
	require.NoError(t, err)
	assert.Contains(t, out, "eve_NXAB12\neve_NXAB13\n")
	assert.NotContains(t, out, "kled_QQ4")

	out, _, err = h.run(t, "", cobra.ShellCompNoDescRequestCmd, "dut", "monitor", "k")
	require.NoError(t, err)
	assert.Contains(t, out, "kled_QQ4\n")
}
