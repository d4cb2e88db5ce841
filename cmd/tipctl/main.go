package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	rest := args[1:]
	switch args[0] {
	case "keygen":
		return runKeygen(rest, stdout, stderr)
	case "address":
		return runAddress(rest, stdout, stderr)
	case "token":
		return runToken(rest, stdout, stderr)
	case "send":
		return runSend(rest, stdout, stderr)
	case "batch":
		return runBatch(rest, stdout, stderr)
	case "refund":
		return runRefund(rest, stdout, stderr)
	case "tip":
		return runGetTip(rest, stdout, stderr)
	case "history":
		return runHistory(rest, stdout, stderr)
	case "indexed":
		return runIndexed(rest, stdout, stderr)
	case "totals":
		return runTotals(rest, stdout, stderr)
	case "balance":
		return runBalance(rest, stdout, stderr)
	case "event":
		return runEventCommand(rest, stdout, stderr)
	case "config":
		return runConfig(rest, stdout, stderr)
	case "admin":
		return runAdminCommand(rest, stdout, stderr)
	case "watch":
		return runWatch(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

// applyGlobalFlags strips --api, --token and --caller ahead of the command.
func applyGlobalFlags(args []string) ([]string, error) {
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(args[0], "--"), "=")
		if name != "api" && name != "token" && name != "caller" {
			break
		}
		args = args[1:]
		if !hasValue {
			if len(args) == 0 {
				return nil, fmt.Errorf("flag --%s requires a value", name)
			}
			value, args = args[0], args[1:]
		}
		switch name {
		case "api":
			apiEndpoint = strings.TrimSuffix(strings.TrimSpace(value), "/")
		case "token":
			authToken = strings.TrimSpace(value)
		case "caller":
			callerAddr = strings.TrimSpace(value)
		}
	}
	return args, nil
}

func usage() string {
	return `Usage: tipctl [--api URL] [--token JWT | --caller ADDR] <command> [flags]

Keys:
  keygen   --out FILE                       create an encrypted keystore
  address  --keystore FILE                  print the address of a keystore
  token    --keystore FILE --secret S [--ttl 1h --issuer I --audience A]

Tipping:
  send     --artist ADDR --amount N [--asset SYM] [--key K]
  batch    --asset SYM ADDR=N [ADDR=N ...]
  refund   --id N
  tip      --id N
  history  --addr ADDR [--role sent|received]
  indexed  --addr ADDR [--role sent|received --limit N --offset N]
  totals   --addr ADDR
  balance  --addr ADDR [--asset SYM ...]

Events:
  event create --duration N [--artist ADDR]
  event get    --id N
  event list   --artist ADDR

Administration:
  config
  admin pause | unpause
  admin set-min --amount N
  admin set-fee --permille N
  admin transfer --owner ADDR
  admin is-owner --addr ADDR

Streaming:
  watch [--type T] [--account ADDR]`
}
