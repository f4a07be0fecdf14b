// Command hashpw prints the bcrypt hash to put in OPERATOR_PASSWORD_HASH.
//
//	go run ./cmd/hashpw -cost 12 'operator password'
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cowblue-git/farm-telegram-bot/internal/utils"
)

func main() {
	cost := flag.Int("cost", 12, "bcrypt cost")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hashpw [-cost N] <password>")
		os.Exit(2)
	}
	hash, err := utils.HashPassword(flag.Arg(0), *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
