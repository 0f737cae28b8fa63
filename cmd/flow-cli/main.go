package main

import "wallet-flow/cmd/flow-cli/cmd"

func main() {
	cmd.Execute()
}
