package main

import (
	cmd "github.com/tandemlabs/tandem/src/cmd/tandem/command"
)

func main() {
	cmd.Execute()
}
