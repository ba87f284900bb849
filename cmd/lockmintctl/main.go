package main

import "lockmint/internal/cli"

func main() {
	cli.Execute()
}
