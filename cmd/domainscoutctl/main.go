// Command domainscoutctl is a thin HTTP client over the running
// domainscout server's job-scoped RPCs — no business logic of its own.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		fs := flag.NewFlagSet("start", flag.ExitOnError)
		jobID := fs.String("job-id", "", "job id (uuid)")
		clientID := fs.String("client-id", "", "client id")
		business := fs.String("business-name", "", "business name")
		vibe := fs.String("vibe", "", "vibe")
		tlds := fs.String("tlds", "com,io", "comma-separated tld preferences")
		srv := fs.String("server", envOr("DOMAINSCOUT_ADDR", "http://localhost:8080"), "server base URL")
		tok := fs.String("token", os.Getenv("DOMAINSCOUT_TOKEN"), "bearer token")
		fs.Parse(os.Args[2:])
		runStart(*srv, *tok, *jobID, *clientID, *business, *vibe, *tlds)
	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		jobID := fs.String("job-id", "", "job id (uuid)")
		srv := fs.String("server", envOr("DOMAINSCOUT_ADDR", "http://localhost:8080"), "server base URL")
		tok := fs.String("token", os.Getenv("DOMAINSCOUT_TOKEN"), "bearer token")
		fs.Parse(os.Args[2:])
		runGet(*srv, *tok, "/api/jobs/"+*jobID+"/status")
	case "results":
		fs := flag.NewFlagSet("results", flag.ExitOnError)
		jobID := fs.String("job-id", "", "job id (uuid)")
		srv := fs.String("server", envOr("DOMAINSCOUT_ADDR", "http://localhost:8080"), "server base URL")
		tok := fs.String("token", os.Getenv("DOMAINSCOUT_TOKEN"), "bearer token")
		fs.Parse(os.Args[2:])
		runGet(*srv, *tok, "/api/jobs/"+*jobID+"/results")
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: domainscoutctl <start|status|results> [flags]")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func runStart(server, token, jobID, clientID, business, vibe, tlds string) {
	body := map[string]any{
		"job_id":    jobID,
		"client_id": clientID,
		"quiz_responses": map[string]any{
			"business_name":   business,
			"vibe":            vibe,
			"tld_preferences": splitCSV(tlds),
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		fail(err)
	}
	doRequest(server, token, http.MethodPost, "/api/jobs/start", raw)
}

func runGet(server, token, path string) {
	doRequest(server, token, http.MethodGet, path, nil)
}

func doRequest(server, token, method, path string, body []byte) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, server+path, reader)
	if err != nil {
		fail(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		fail(err)
	}
	fmt.Println(string(out))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "domainscoutctl:", err)
	os.Exit(1)
}
