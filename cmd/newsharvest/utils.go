package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pevans/newsharvest/config"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// settingsFlags are accepted by every subcommand.
type settingsFlags struct {
	configFile string
	envFile    string
}

func addSettingsFlags(fs *flag.FlagSet) *settingsFlags {
	sf := &settingsFlags{}
	fs.StringVar(&sf.configFile, "config", getEnv("NEWSHARVEST_CONFIG", ""), "Path to settings file (NEWSHARVEST_CONFIG)")
	fs.StringVar(&sf.envFile, "env", ".env", "Path to dotenv file")
	return sf
}

// load reads settings, falling back to ~/.newsharvest/config.yaml when no
// file was named.
func (sf *settingsFlags) load() (*config.Settings, error) {
	file := sf.configFile
	if file == "" {
		var err error
		file, err = config.DefaultSettingsFile()
		if err != nil {
			return nil, err
		}
	}
	return config.LoadSettings(file, sf.envFile)
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags returns the exit code to use when parsing stops the command.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 1, false
	}
	return 0, true
}

func fail(stderr io.Writer, format string, args ...any) int {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return 1
}
