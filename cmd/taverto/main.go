package main

import "github.com/deude27/taverto/internal/cli"

func main() {
	cli.Execute()
}
