package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

func runEventCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: tipctl event create|get|list [flags]")
		return 1
	}
	switch args[0] {
	case "create":
		return runEventCreate(args[1:], stdout, stderr)
	case "get":
		return runEventGet(args[1:], stdout, stderr)
	case "list":
		return runEventList(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown event command: %s\n", args[0])
		return 1
	}
}

func runEventCreate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("event create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	artist := fs.String("artist", "", "artist address (defaults to the caller)")
	duration := fs.Uint64("duration", 0, "event length in heights")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *duration == 0 {
		fmt.Fprintln(stderr, "Error: --duration must be positive")
		return 1
	}
	body := map[string]interface{}{"duration": *duration}
	if a := strings.TrimSpace(*artist); a != "" {
		body["artist"] = a
	}
	result, err := callAPI(http.MethodPost, "/v1/events", body, "")
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runEventGet(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("event get", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rawID := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, ok := parseIDFlag(stderr, *rawID)
	if !ok {
		return 1
	}
	return getAndPrint(fmt.Sprintf("/v1/events/%d", id), stdout, stderr)
}

func runEventList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("event list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	artist := fs.String("artist", "", "artist address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlag(stderr, "artist", *artist) {
		return 1
	}
	return getAndPrint("/v1/artists/"+url.PathEscape(strings.TrimSpace(*artist))+"/events", stdout, stderr)
}
