package main

import (
	"os"

	"regassist/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
