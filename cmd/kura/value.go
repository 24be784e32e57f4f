package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/harunnryd/kura/internal/config"

	"github.com/spf13/cobra"
)

// parseArg reads a command-line value the way environment values are read,
// unless raw is set.
func parseArg(arg string, raw bool) any {
	if raw {
		return arg
	}
	return config.ParseValue(arg)
}

// printValue writes strings as-is and everything else as JSON.
func printValue(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// warnShadowed tells the operator that a stored value will not be visible
// because the environment overrides it.
func warnShadowed(cmd *cobra.Command, key string) {
	if _, ok := os.LookupEnv(config.EnvKey(key)); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s is set in the environment and takes precedence\n", config.EnvKey(key))
	}
}
