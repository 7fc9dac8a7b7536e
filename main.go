// The main package for the regharvest executable.
package main

import (
	"github.com/regharvest/regharvest/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
