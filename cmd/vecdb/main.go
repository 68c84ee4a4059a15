// Command vecdb runs the self-hosted vector database and its operational
// CLI surface: serve, storage info/verify/migrate, snapshot
// list/create/restore, version.
package main

import (
	"os"

	"github.com/vecdbhq/vecdb/cmd/vecdb/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
