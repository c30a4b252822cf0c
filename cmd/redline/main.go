package main

import "github.com/ppiankov/redline/internal/cli"

func main() {
	cli.Execute()
}
