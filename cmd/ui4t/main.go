// Package main provides the ui4t command.
package main

import "github.com/leapstack-labs/ui4t/internal/cli"

func main() {
	cli.Main()
}
