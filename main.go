// The main package for the ukhpi executable.
package main

import (
	"github.com/gmorse81/uk-hpi-service/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
