// Command relayctl sends one frame to a relay and optionally prints the reply.
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
