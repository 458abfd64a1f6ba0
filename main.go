// The main package for the harvester executable.
package main

import (
	"github.com/zimaxnet/orb-image-harvester/cmd"
)

func main() {
	cmd.Execute()
}
