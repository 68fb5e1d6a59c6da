package main

import (
	"github.com/vampfi/bonus-engine/cmd"
)

func main() {
	cmd.Execute()
}
