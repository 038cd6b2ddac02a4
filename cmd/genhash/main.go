// genhash prints a bcrypt hash for a password, kiosk password or PIN.
// Usage: go run ./cmd/genhash [-cost 12] <secret>
package main

import (
	"flag"
	"fmt"
	"os"

	"cspacehr/internal/security"
)

func main() {
	cost := flag.Int("cost", security.DefaultCost, "bcrypt cost")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: genhash [-cost N] <secret>")
		os.Exit(2)
	}

	h, err := security.NewHasher(*cost).Hash(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(h)
}
