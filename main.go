package main

import (
	"os"

	"github.com/Spencerx/releasekit/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
