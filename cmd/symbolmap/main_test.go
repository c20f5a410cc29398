package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testDataset = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-112.07, 33.45]},
     "properties": {"city": "Phoenix", "temp1950s": 50, "temp1960s": 70}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-97.74, 30.27]},
     "properties": {"city": "Austin", "temp1950s": 30, "temp1960s": 40}}
  ]
}`

// writeFixture writes a dataset and a config pointing at it, with the
// dataset cache disabled.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	dataPath := filepath.Join(dir, "cities.geojson")
	require.NoError(t, os.WriteFile(dataPath, []byte(testDataset), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgBody := fmt.Sprintf("data:\n  source: %q\nstorage:\n  db_path: \"\"\nlogging:\n  level: error\n", dataPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		renderOutput = ""
		renderIndex = 0
		_ = renderCmd.Flags().Set("index", "0")
		renderCmd.Flags().Lookup("index").Changed = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "render", "attributes"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "symbolmap", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "configs/config.yaml", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag, "serve command should have --addr flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestRenderCommand(t *testing.T) {
	cfgPath := writeFixture(t)

	out, err := execute(t, "--config", cfgPath, "render", "--index", "1")
	require.NoError(t, err)

	doc := gjson.Parse(out)
	assert.Equal(t, "FeatureCollection", doc.Get("type").String())
	assert.Equal(t, 7.0, doc.Get("features.0.properties.radius").Float())
	assert.Equal(t, "temp1960s", doc.Get("features.0.properties.attribute").String())
}

func TestRenderCommand_ClampsAndWritesFile(t *testing.T) {
	cfgPath := writeFixture(t)
	outPath := filepath.Join(t.TempDir(), "symbols.geojson")

	_, err := execute(t, "--config", cfgPath, "render", "--index", "99", "-o", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 4.0, gjson.GetBytes(data, "features.1.properties.radius").Float())
}

func TestAttributesCommand(t *testing.T) {
	cfgPath := writeFixture(t)

	out, err := execute(t, "--config", cfgPath, "attributes")
	require.NoError(t, err)
	assert.Equal(t, "0\ttemp1950s\t1950s\n1\ttemp1960s\t1960s\nminimum\t30\n", out)
}

func TestRenderCommand_LoadFailure(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("data:\n  source: %q\nstorage:\n  db_path: \"\"\nlogging:\n  level: error\n", filepath.Join(dir, "missing.geojson"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	_, err := execute(t, "--config", cfgPath, "render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, writeFile(path, []byte(`{"type":"FeatureCollection"}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":\"FeatureCollection\"}\n", string(data))
}

func TestWriteFile_Errors(t *testing.T) {
	dir := t.TempDir()

	err := writeFile(filepath.Join(dir, "missing", "out.geojson"), []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")

	err = writeFile(dir, []byte("{}"))
	require.Error(t, err, "a directory is not a writable output file")
}

func TestRenderCommand_OutputError(t *testing.T) {
	cfgPath := writeFixture(t)

	_, err := execute(t, "--config", cfgPath, "render", "-o", filepath.Join(t.TempDir(), "missing", "out.geojson"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output file")
}
