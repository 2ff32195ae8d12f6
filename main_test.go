package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestBindFlags(t *testing.T) {
	t.Setenv("TRACKMESH_LAP_DIR", "/env/laps")
	t.Setenv("TRACKMESH_WATCH", "true")

	var lapDir, out string
	var watch bool
	cmd := &cobra.Command{Use: "test"}
	cmd.PersistentFlags().StringVar(&lapDir, "lap-dir", "", "")
	cmd.Flags().BoolVar(&watch, "watch", false, "")
	cmd.Flags().StringVar(&out, "out", "default-out", "")
	if err := cmd.Flags().Set("out", "flag-out"); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRACKMESH_OUT", "env-out")

	bindFlags(cmd, viper.New())

	if lapDir != "/env/laps" {
		t.Errorf("lap-dir = %q, want the environment value", lapDir)
	}
	if !watch {
		t.Error("watch should be enabled from the environment")
	}
	if out != "flag-out" {
		t.Errorf("out = %q, an explicit flag wins over the environment", out)
	}
}

func TestSubcommands(t *testing.T) {
	want := map[string]bool{"generate": false, "inspect": false, "render": false, "serve": false, "publish": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %s", name)
		}
	}
}

func TestExecuteGenerate(t *testing.T) {
	lapDir := t.TempDir()
	writeRingLaps(t, lapDir)
	outDir := t.TempDir()

	stdout := os.Stdout
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer devNull.Close()
	os.Stdout = devNull
	defer func() { os.Stdout = stdout }()

	rootCmd.SetArgs([]string{
		"generate",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--lap-dir", lapDir,
		"--out", outDir,
		"--geojson",
	})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, name := range []string{"ring.json", "ring.geojson"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "ring.svg")); !os.IsNotExist(err) {
		t.Error("svg output was not requested")
	}
}
