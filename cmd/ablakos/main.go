package main

import (
	"github.com/mcoot/ablakos-go/internal/cli"
)

func main() {
	cli.Execute()
}
