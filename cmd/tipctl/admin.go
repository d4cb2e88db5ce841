package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

func runConfig(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintln(stderr, "Usage: tipctl config")
		return 1
	}
	return getAndPrint("/v1/config", stdout, stderr)
}

func runAdminCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: tipctl admin pause|unpause|set-min|set-fee|transfer|is-owner [flags]")
		return 1
	}
	rest := args[1:]
	switch args[0] {
	case "pause":
		return adminPut("/v1/admin/paused", map[string]interface{}{"paused": true}, stdout, stderr)
	case "unpause":
		return adminPut("/v1/admin/paused", map[string]interface{}{"paused": false}, stdout, stderr)
	case "set-min":
		fs := flag.NewFlagSet("admin set-min", flag.ContinueOnError)
		fs.SetOutput(stderr)
		amount := fs.String("amount", "", "minimum gross tip")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if !requireFlag(stderr, "amount", *amount) {
			return 1
		}
		return adminPut("/v1/admin/min-tip", map[string]interface{}{"amount": strings.TrimSpace(*amount)}, stdout, stderr)
	case "set-fee":
		fs := flag.NewFlagSet("admin set-fee", flag.ContinueOnError)
		fs.SetOutput(stderr)
		permille := fs.Int("permille", -1, "platform fee in permille (0-100)")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if *permille < 0 {
			fmt.Fprintln(stderr, "Error: --permille is required")
			return 1
		}
		return adminPut("/v1/admin/fee", map[string]interface{}{"permille": *permille}, stdout, stderr)
	case "transfer":
		fs := flag.NewFlagSet("admin transfer", flag.ContinueOnError)
		fs.SetOutput(stderr)
		owner := fs.String("owner", "", "new owner address")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if !requireFlag(stderr, "owner", *owner) {
			return 1
		}
		return adminPut("/v1/admin/owner", map[string]interface{}{"owner": strings.TrimSpace(*owner)}, stdout, stderr)
	case "is-owner":
		fs := flag.NewFlagSet("admin is-owner", flag.ContinueOnError)
		fs.SetOutput(stderr)
		addr := fs.String("addr", "", "address to check")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if !requireFlag(stderr, "addr", *addr) {
			return 1
		}
		return getAndPrint("/v1/owners/"+url.PathEscape(strings.TrimSpace(*addr)), stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown admin command: %s\n", args[0])
		return 1
	}
}

func adminPut(path string, body interface{}, stdout, stderr io.Writer) int {
	result, err := callAPI(http.MethodPut, path, body, "")
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}
