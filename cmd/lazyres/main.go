package main

import (
	"github.com/onflow/lazyres/cmd/lazyres/cmd"
)

func main() {
	cmd.Execute()
}
