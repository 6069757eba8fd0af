package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	_, err = root.ExecuteC()
	return buf.String(), err
}

func TestCMD(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "")
	assert.Nil(t, err)
	assert.NotNil(t, output)
}

func TestVersion(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "version")
	assert.Nil(t, err)
	assert.Contains(t, output, "mpack")
}

func TestInspect(t *testing.T) {
	// {"a": [1, nil]}
	data := []byte{0x81, 0xa1, 'a', 0x92, 0x01, 0xc0}
	file := filepath.Join(t.TempDir(), "in.msgpack")
	require.NoError(t, os.WriteFile(file, data, 0o600))

	output, err := executeCommand(NewRootCmd(), "inspect", file)
	assert.Nil(t, err)
	assert.Contains(t, output, "map(1)")
	assert.Contains(t, output, `"a"`)
	assert.Contains(t, output, "array(2)")
	assert.Contains(t, output, "nil")
}

func TestConvert(t *testing.T) {
	data := []byte{0x81, 0xa1, 'a', 0x01}
	file := filepath.Join(t.TempDir(), "in.msgpack")
	require.NoError(t, os.WriteFile(file, data, 0o600))

	output, err := executeCommand(NewRootCmd(), "convert", file)
	assert.Nil(t, err)
	assert.Contains(t, output, `"a": 1`)
}
