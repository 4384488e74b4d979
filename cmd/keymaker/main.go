// KeyMaker derives passwords, BIP39 phrases and SSH keys from a passphrase,
// a PIN and a target name:
//   - scrypt for every derivation (memory-hard, configurable cost)
//   - an identity key kept encrypted in memory under a PIN-derived keystream
//   - a charset weighted encoder guaranteeing every character class appears
//
// Nothing is written to disk.
package main

import (
	"os"

	"keymaker/internal/cli"
)

// version is the application version printed by --version.
const version = "v0.1.0"

func main() {
	os.Exit(cli.Execute(version))
}
