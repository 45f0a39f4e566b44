package main

import (
	"github.com/asad/bluectl/internal/cli"
)

// main is the entry point for bluectl.
// It delegates to the CLI package which handles command parsing and execution.
func main() {
	cli.Execute()
}
