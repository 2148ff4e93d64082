package main

import "github.com/metalens/metalens/internal/cli"

func main() {
	cli.Execute()
}
