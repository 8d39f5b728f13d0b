package main

import (
	"github.com/sponsorgate-labs/sponsorgate-node/internal/cmd"
)

func main() {
	cmd.Execute()
}
