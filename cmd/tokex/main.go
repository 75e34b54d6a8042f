package main

import (
	"os"

	"tokex/cmd/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stderr))
}
