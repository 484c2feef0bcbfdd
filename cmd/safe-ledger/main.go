package main

import "safe-ledger/cmd/safe-ledger/cmd"

func main() {
	cmd.Execute()
}
