package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"entropy-gate.backend/internal/usecases"
)

// Generates an API key offline, printing both the secret (hand it to the
// caller) and its SHA-256 hash (seed it into the api_keys table). The secret
// is never stored server-side.
func main() {
	mode := flag.String("mode", "live", "key mode: live or test")
	hexLen := flag.Int("hex-len", 32, "random hex length (must be even)")
	flag.Parse()

	if err := validateInputs(*mode, *hexLen); err != nil {
		log.Fatal(err)
	}

	secret, keyHash, err := buildKey(*mode, *hexLen)
	if err != nil {
		log.Fatalf("failed to generate api key: %v", err)
	}

	fmt.Println("Generated API key")
	fmt.Printf("API_KEY=%s\n", secret)
	fmt.Printf("KEY_HASH=%s\n", keyHash)
	fmt.Printf("KEY_PREVIEW=%s...\n", keyPreview(secret))
}

func validateInputs(mode string, hexLen int) error {
	if mode != "live" && mode != "test" {
		return fmt.Errorf("invalid mode: %s (allowed: live, test)", mode)
	}
	if hexLen <= 0 || hexLen%2 != 0 {
		return fmt.Errorf("invalid hex-len: %d (must be positive and even)", hexLen)
	}
	return nil
}

// buildKey hashes with the same digest the server stores, so the printed
// KEY_HASH can be seeded verbatim.
func buildKey(mode string, hexLen int) (secret, keyHash string, err error) {
	raw, err := generateRandomHex(hexLen)
	if err != nil {
		return "", "", err
	}
	secret = fmt.Sprintf("eg_%s_%s", mode, raw)
	return secret, usecases.HashKey(secret), nil
}

func keyPreview(secret string) string {
	if len(secret) <= 12 {
		return secret
	}
	return secret[:12]
}

func generateRandomHex(n int) (string, error) {
	b := make([]byte, n/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
