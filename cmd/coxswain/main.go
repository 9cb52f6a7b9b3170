// Command coxswain builds changed deployment units and commits their versions.
package main

import (
	"os"

	"github.com/cameronsjo/coxswain/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
