package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func requireFlag(stderr io.Writer, name, value string) bool {
	if strings.TrimSpace(value) == "" {
		fmt.Fprintf(stderr, "Error: --%s is required\n", name)
		return false
	}
	return true
}

func runSend(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	artist := fs.String("artist", "", "artist address")
	amount := fs.String("amount", "", "gross amount in base units")
	asset := fs.String("asset", "", "asset symbol (default native)")
	key := fs.String("key", "", "idempotency key for safe retries")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlag(stderr, "artist", *artist) || !requireFlag(stderr, "amount", *amount) {
		return 1
	}
	body := map[string]string{"artist": strings.TrimSpace(*artist), "amount": strings.TrimSpace(*amount)}
	if *asset != "" {
		body["asset"] = *asset
	}
	result, err := callAPI(http.MethodPost, "/v1/tips", body, *key)
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

type batchEntry struct {
	Artist string `json:"artist"`
	Amount string `json:"amount"`
}

func runBatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asset := fs.String("asset", "", "asset symbol (default native)")
	key := fs.String("key", "", "idempotency key for safe retries")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: provide at least one ADDR=AMOUNT entry")
		return 1
	}
	entries := make([]batchEntry, 0, fs.NArg())
	for _, raw := range fs.Args() {
		addr, amount, ok := strings.Cut(raw, "=")
		if !ok || addr == "" || amount == "" {
			fmt.Fprintf(stderr, "Error: malformed entry %q, want ADDR=AMOUNT\n", raw)
			return 1
		}
		entries = append(entries, batchEntry{Artist: addr, Amount: amount})
	}
	body := map[string]interface{}{"entries": entries}
	if *asset != "" {
		body["asset"] = *asset
	}
	result, err := callAPI(http.MethodPost, "/v1/tips/batch", body, *key)
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func parseIDFlag(stderr io.Writer, raw string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		fmt.Fprintln(stderr, "Error: --id must be a positive integer")
		return 0, false
	}
	return id, true
}

func runRefund(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("refund", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rawID := fs.String("id", "", "tip id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, ok := parseIDFlag(stderr, *rawID)
	if !ok {
		return 1
	}
	result, err := callAPI(http.MethodPost, fmt.Sprintf("/v1/tips/%d/refund", id), nil, "")
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runGetTip(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tip", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rawID := fs.String("id", "", "tip id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, ok := parseIDFlag(stderr, *rawID)
	if !ok {
		return 1
	}
	return getAndPrint(fmt.Sprintf("/v1/tips/%d", id), stdout, stderr)
}

func getAndPrint(path string, stdout, stderr io.Writer) int {
	result, err := callAPI(http.MethodGet, path, nil, "")
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "account address")
	role := fs.String("role", "sent", "sent or received")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlag(stderr, "addr", *addr) {
		return 1
	}
	query := url.Values{"role": {*role}}
	return getAndPrint("/v1/accounts/"+url.PathEscape(*addr)+"/history?"+query.Encode(), stdout, stderr)
}

func runIndexed(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("indexed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "account address")
	role := fs.String("role", "sent", "sent or received")
	limit := fs.Int("limit", 50, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlag(stderr, "addr", *addr) {
		return 1
	}
	query := url.Values{
		"role":   {*role},
		"limit":  {strconv.Itoa(*limit)},
		"offset": {strconv.Itoa(*offset)},
	}
	return getAndPrint("/v1/accounts/"+url.PathEscape(*addr)+"/tips?"+query.Encode(), stdout, stderr)
}

func runTotals(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("totals", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "account address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlag(stderr, "addr", *addr) {
		return 1
	}
	return getAndPrint("/v1/accounts/"+url.PathEscape(*addr)+"/totals", stdout, stderr)
}

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "account address")
	var assetList multiFlag
	fs.Var(&assetList, "asset", "asset symbol (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlag(stderr, "addr", *addr) {
		return 1
	}
	path := "/v1/accounts/" + url.PathEscape(*addr) + "/balances"
	if len(assetList) > 0 {
		path += "?" + url.Values{"asset": assetList}.Encode()
	}
	return getAndPrint(path, stdout, stderr)
}
