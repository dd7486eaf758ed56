// Package main is a container healthcheck for memreg. It requests the
// readiness endpoint and exits 0 when the server is ready, 1 otherwise,
// naming any failing dependency checks.
//
// Usage: healthcheck [-timeout 5s] [url]
// The URL defaults to $MEMREG_HEALTHCHECK_URL or http://localhost:8080/readyz.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"
)

const defaultURL = "http://localhost:8080/readyz"

type readiness struct {
	Status string `json:"status"`
	Checks map[string]struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"checks"`
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	url := os.Getenv("MEMREG_HEALTHCHECK_URL")
	if flag.NArg() > 0 {
		url = flag.Arg(0)
	}
	if url == "" {
		url = defaultURL
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		os.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "healthcheck failed: status %d\n", resp.StatusCode)
	var body readiness
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		names := make([]string, 0, len(body.Checks))
		for name := range body.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if c := body.Checks[name]; c.Status != "up" {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", name, c.Error)
			}
		}
	}
	os.Exit(1)
}
