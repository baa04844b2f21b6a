package main

import (
	"os"

	"github.com/terraleaf-code/tleaf-token/internal/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
