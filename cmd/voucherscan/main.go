package main

import (
	"github.com/MeKo-Tech/voucherscan/cmd/voucherscan/cmd"
)

func main() {
	cmd.Execute()
}
