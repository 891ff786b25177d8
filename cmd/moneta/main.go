// Moneta CLI entry point
//
// Moneta is an offline-first personal finance ledger. Every record lives in
// a local SQLite database and a background scheduler reconciles it against
// the cloud store when connectivity and an account are available.
package main

import "github.com/monetalabs/moneta/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
