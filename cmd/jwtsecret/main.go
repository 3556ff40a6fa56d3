// Command jwtsecret prints random values suitable for JWT_SECRET.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
)

// minBytes matches the shortest secret the portal accepts in prod.
const minBytes = 32

func main() {
	count := flag.Int("n", 3, "number of secrets to print")
	size := flag.Int("bytes", 64, "random bytes per secret")
	flag.Parse()

	secrets, err := generate(*count, *size)
	if err != nil {
		log.Fatalf("jwtsecret: %v", err)
	}
	for i, s := range secrets {
		fmt.Fprintf(os.Stdout, "Option %d:\n%s\n\n", i+1, s)
	}
	fmt.Fprintln(os.Stdout, "Add one to your .env file as:")
	fmt.Fprintln(os.Stdout, "JWT_SECRET=<chosen secret>")
}

func generate(count, size int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	if size < minBytes {
		return nil, fmt.Errorf("secrets shorter than %d bytes are rejected in prod, got %d", minBytes, size)
	}
	out := make([]string, count)
	buf := make([]byte, size)
	for i := range out {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		out[i] = hex.EncodeToString(buf)
	}
	return out, nil
}
