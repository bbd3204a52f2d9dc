package main

import (
	"github.com/sw33tLie/tabscope/cmd"
)

func main() {
	cmd.Execute()
}
