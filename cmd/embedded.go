package main

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// Embedded configs ship inside the binary so `squeeze serve` works with no
// files on disk and `squeeze config` can print a starting point to edit.
//
//go:embed configs/*.yaml
var configsFS embed.FS

// defaultConfigName is what serve falls back to and what `squeeze config`
// prints when no name is given.
const defaultConfigName = "squeeze"

const configExt = ".yaml"

// getEmbeddedConfig reads configs/<name>.yaml. The extension is optional.
func getEmbeddedConfig(name string) ([]byte, error) {
	name = strings.TrimSuffix(name, configExt)
	data, err := configsFS.ReadFile(path.Join("configs", name+configExt))
	if err != nil {
		return nil, fmt.Errorf("embedded config %q: %w", name, err)
	}
	return data, nil
}

// listEmbeddedConfigs backs `squeeze config --list`.
func listEmbeddedConfigs() ([]string, error) {
	matches, err := fs.Glob(configsFS, "configs/*"+configExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded configs: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), configExt))
	}
	slices.Sort(names)
	return names, nil
}
