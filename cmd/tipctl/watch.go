package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nhooyr.io/websocket"
)

// streamURL rewrites the API endpoint into the websocket event stream URL.
func streamURL(base string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse api endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/events"
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventType := fs.String("type", "", "comma separated event types")
	account := fs.String("account", "", "only events touching this address")
	limit := fs.Int("limit", 0, "exit after N events (0 streams until interrupted)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	query := url.Values{}
	if t := strings.TrimSpace(*eventType); t != "" {
		query.Set("type", t)
	}
	if a := strings.TrimSpace(*account); a != "" {
		query.Set("account", a)
	}
	target, err := streamURL(apiEndpoint, query)
	if err != nil {
		return handleCallError(stderr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	if token := strings.TrimSpace(authToken); token != "" {
		header.Set("Authorization", "Bearer "+token)
	} else if caller := strings.TrimSpace(callerAddr); caller != "" {
		header.Set(callerHeader, caller)
	}
	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return handleCallError(stderr, fmt.Errorf("connect %s: %w", target, err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for seen := 0; *limit == 0 || seen < *limit; seen++ {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return 0
			}
			return handleCallError(stderr, err)
		}
		fmt.Fprintln(stdout, strings.TrimSpace(string(data)))
	}
	return 0
}
