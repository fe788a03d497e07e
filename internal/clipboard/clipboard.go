// Package clipboard adapts the system clipboard behind the domain
// interface so the stream key never has to be printed to copy it.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// System writes through the OS clipboard.
type System struct{}

func (System) Copy(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	return nil
}

// Noop discards copies. Used headless and in tests.
type Noop struct{}

func (Noop) Copy(string) error { return nil }
