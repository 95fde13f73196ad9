// dash is a terminal dashboard for the StreamCommerce analytics server.
//
// Usage:
//
//	dash --server http://localhost:8000
//	dash tail --config configs/dash.example.yaml
//	dash track purchase --data amount=49.99
package main

import (
	"os"

	"github.com/rickgao/streamcommerce-dash/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
