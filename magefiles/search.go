//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs a standard-mode search for query, printing
// the result table.
func Search(query string) error {
	if query == "" {
		return fmt.Errorf("usage: mage search \"<research question>\"")
	}
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "search", "--log-pretty", query)
}
