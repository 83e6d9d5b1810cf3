// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/innovationmech/sagaflow/internal/sagaflow/cmd/version"
	"github.com/innovationmech/sagaflow/pkg/logger"
)

func init() {
	logger.Logger, _ = zap.NewDevelopment()
}

func TestNewRootCommand(t *testing.T) {
	t.Run("root command properties", func(t *testing.T) {
		cmd := NewRootCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, "sagaflow", cmd.Use)
		assert.Equal(t, version.Version, cmd.Version)
		assert.False(t, cmd.HasParent())
	})

	t.Run("subcommands", func(t *testing.T) {
		cmd := NewRootCommand()
		subcommands := cmd.Commands()
		assert.Len(t, subcommands, 2)

		var serveCmd, versionCmd *cobra.Command
		for _, subcmd := range subcommands {
			switch subcmd.Use {
			case "serve":
				serveCmd = subcmd
			case "version":
				versionCmd = subcmd
			}
		}
		require.NotNil(t, serveCmd)
		require.NotNil(t, versionCmd)
		assert.Equal(t, cmd, serveCmd.Parent())
		assert.Equal(t, cmd, versionCmd.Parent())
	})

	t.Run("version output", func(t *testing.T) {
		cmd := NewRootCommand()
		stdout := new(bytes.Buffer)
		cmd.SetOut(stdout)
		cmd.SetArgs([]string{"--version"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, stdout.String(), version.Version)
	})
}
