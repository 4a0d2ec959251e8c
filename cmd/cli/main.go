package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/logger"
)

const defaultServer = "http://localhost:8080"

func main() {
	log := logger.New(logger.FormatHuman, os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "session":
		err = runSession(log, os.Args[2:])
	case "register", "login":
		err = runCredentials(log, os.Args[1], os.Args[2:])
	case "logout":
		err = runSimple(log, "logout", http.MethodPost, "/api/session/logout", os.Args[2:])
	case "list":
		err = runSimple(log, "list", http.MethodGet, "/api/transactions", os.Args[2:])
	case "add":
		err = runAdd(log, os.Args[2:])
	case "delete":
		err = runDelete(log, os.Args[2:], os.Stdin, os.Stdout)
	case "metrics":
		err = runSimple(log, "metrics", http.MethodGet, "/api/metrics", os.Args[2:])
	case "items":
		err = runSimple(log, "items", http.MethodGet, "/api/items", os.Args[2:])
	case "add-item":
		err = runAddItem(log, os.Args[2:])
	case "forecast":
		err = runSimple(log, "forecast", http.MethodPost, "/api/forecast", os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}

func printUsage() {
	fmt.Println("Budget Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  session   Show the signed-in identity")
	fmt.Println("  register  Create an email/password account (ledger)")
	fmt.Println("  login     Sign in with email and password (ledger)")
	fmt.Println("  logout    Sign out (ledger)")
	fmt.Println("  list      List transactions with metrics (ledger)")
	fmt.Println("  add       Record a transaction (ledger)")
	fmt.Println("  delete    Delete a transaction after confirmation (ledger)")
	fmt.Println("  metrics   Show totals and 30-day cash flow (ledger)")
	fmt.Println("  items     List budget items and the summary (budget)")
	fmt.Println("  add-item  Add a budget item (budget)")
	fmt.Println("  forecast  Generate a three-month forecast (budget)")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nEvery command accepts -server (default " + defaultServer + ").")
}

// client is a thin JSON client for the tracker API.
type client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

func newClient(server string, log zerolog.Logger) *client {
	return &client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: 2 * time.Minute},
		log:  log,
	}
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("do: marshal: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("Calling API")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("do: read body: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return nil, &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	return raw, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	server := fs.String("server", envOr("TRACKER_SERVER", defaultServer), "API server base URL")
	return fs, server
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func runSimple(log zerolog.Logger, name, method, path string, args []string) error {
	fs, server := newFlagSet(name)
	fs.Parse(args)

	raw, err := newClient(*server, log).do(context.Background(), method, path, nil)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, raw)
}

func runSession(log zerolog.Logger, args []string) error {
	return runSimple(log, "session", http.MethodGet, "/api/session", args)
}

func runCredentials(log zerolog.Logger, name string, args []string) error {
	fs, server := newFlagSet(name)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", os.Getenv("TRACKER_PASSWORD"), "Account password (or set TRACKER_PASSWORD)")
	fs.Parse(args)

	raw, err := newClient(*server, log).do(context.Background(), http.MethodPost, "/api/session/"+name, map[string]string{
		"email":    *email,
		"password": *password,
	})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, raw)
}

func runAdd(log zerolog.Logger, args []string) error {
	fs, server := newFlagSet("add")
	amount := fs.Float64("amount", 0, "Positive amount")
	category := fs.String("category", "", "Category label")
	kind := fs.String("type", "expense", "income or expense")
	status := fs.String("status", "actual", "actual or forecasted")
	date := fs.String("date", "", "YYYY-MM-DD, required for forecasted entries")
	fs.Parse(args)

	body := map[string]interface{}{
		"amount":   *amount,
		"category": *category,
		"type":     *kind,
		"status":   *status,
	}
	if *date != "" {
		body["date"] = *date
	}

	raw, err := newClient(*server, log).do(context.Background(), http.MethodPost, "/api/transactions", body)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, raw)
}

func runDelete(log zerolog.Logger, args []string, in io.Reader, out io.Writer) error {
	fs, server := newFlagSet("delete")
	id := fs.String("id", "", "Transaction id")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("delete: -id is required")
	}

	confirmed := *yes
	if !confirmed {
		var err error
		confirmed, err = promptConfirm(in, out, *id)
		if err != nil {
			return err
		}
	}

	answer := "no"
	if confirmed {
		answer = "yes"
	}

	path := "/api/transactions/" + url.PathEscape(*id) + "?confirm=" + answer
	raw, err := newClient(*server, log).do(context.Background(), http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return printJSON(out, raw)
}

// promptConfirm asks on out and reads one answer line from in. Anything but
// y or yes is a no.
func promptConfirm(in io.Reader, out io.Writer, id string) (bool, error) {
	fmt.Fprintf(out, "Delete transaction %s? [y/N] ", id)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("promptConfirm: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func runAddItem(log zerolog.Logger, args []string) error {
	fs, server := newFlagSet("add-item")
	amount := fs.Float64("amount", 0, "Positive amount")
	description := fs.String("description", "", "What the item is")
	kind := fs.String("type", "expense", "income or expense")
	date := fs.String("date", time.Now().Format("2006-01-02"), "YYYY-MM-DD")
	fs.Parse(args)

	raw, err := newClient(*server, log).do(context.Background(), http.MethodPost, "/api/items", map[string]interface{}{
		"amount":      *amount,
		"description": *description,
		"type":        *kind,
		"date":        *date,
	})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, raw)
}
