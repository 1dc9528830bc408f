// The main package for the jobscout executable.
package main

import (
	"github.com/autoapply/jobscout/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
