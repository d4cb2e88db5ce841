package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tipchain/cmd/internal/passphrase"
	"tipchain/crypto"
	"tipchain/gateway/middleware"
)

const keystorePassEnv = "TIP_KEYSTORE_PASS"

func readPassphrase(create bool) (string, error) {
	src := passphrase.NewSource(keystorePassEnv)
	if create {
		src = src.WithConfirmation()
	}
	return src.Get()
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "tip.keystore", "output keystore path")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !*force {
		if _, err := os.Stat(*out); err == nil {
			fmt.Fprintf(stderr, "Error: keystore %s already exists (use --force to overwrite)\n", *out)
			return 1
		}
	}
	pass, err := readPassphrase(true)
	if err != nil {
		return handleCallError(stderr, err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return handleCallError(stderr, err)
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return handleCallError(stderr, fmt.Errorf("write keystore: %w", err))
	}
	fmt.Fprintf(stdout, "Address: %s\nKeystore: %s\n", key.PubKey().Address(), *out)
	return 0
}

func loadKeystoreAddress(path string) (crypto.Address, error) {
	if strings.TrimSpace(path) == "" {
		return crypto.Address{}, fmt.Errorf("--keystore is required")
	}
	pass, err := readPassphrase(false)
	if err != nil {
		return crypto.Address{}, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("open keystore: %w", err)
	}
	return key.PubKey().Address(), nil
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("keystore", "", "keystore path")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := loadKeystoreAddress(*path)
	if err != nil {
		return handleCallError(stderr, err)
	}
	fmt.Fprintln(stdout, addr.String())
	return 0
}

// runToken mints a bearer token whose subject is the keystore address. The
// secret is shared with tipd's auth configuration.
func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("keystore", "", "keystore path")
	addrFlag := fs.String("addr", "", "subject address instead of a keystore")
	secret := fs.String("secret", os.Getenv("TIP_AUTH_SECRET"), "HMAC secret")
	issuer := fs.String("issuer", "tipchain", "token issuer")
	audience := fs.String("audience", "", "token audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*secret) == "" {
		fmt.Fprintln(stderr, "Error: --secret is required")
		return 1
	}
	var subject crypto.Address
	var err error
	if strings.TrimSpace(*addrFlag) != "" {
		subject, err = crypto.ParseAddress(*addrFlag)
	} else {
		subject, err = loadKeystoreAddress(*path)
	}
	if err != nil {
		return handleCallError(stderr, err)
	}
	token, err := middleware.IssueToken(*secret, *issuer, *audience, subject, *ttl, time.Now())
	if err != nil {
		return handleCallError(stderr, err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}
