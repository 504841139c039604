package main

import (
	"os"

	"github.com/shopspring/decimal"

	"cifra/internal/commands"
)

var version = "dev"

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	if err := commands.NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
