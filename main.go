// The main package for the omnidocs executable.
package main

import (
	"github.com/xvc323/omnidocs/cmd"
)

func main() {
	cmd.Execute()
}
