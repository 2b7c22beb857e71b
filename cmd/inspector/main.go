// Command inspector dumps engine state from a running rent2repay server.
//
//	inspector -base http://localhost:8080 -admin-key secret
//	inspector -base http://localhost:8080 -user 0xabc... -asset WXDAI
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	adminKey := flag.String("admin-key", "", "admin key for /v1/admin/state")
	user := flag.String("user", "", "user address to inspect")
	asset := flag.String("asset", "", "asset symbol or address")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	dump(client, *base+"/health", "")

	if *adminKey != "" {
		dump(client, *base+"/v1/admin/state", *adminKey)
	}
	if *user != "" && *asset != "" {
		dump(client, fmt.Sprintf("%s/v1/authorizations/%s/%s", *base, *user, *asset), "")
	}
}

func dump(client *http.Client, url, adminKey string) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad url %s: %v\n", url, err)
		return
	}
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request %s failed: %v\n", url, err)
		return
	}
	defer resp.Body.Close()

	var body interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "invalid response from %s: %v\n", url, err)
		return
	}
	pretty, _ := json.MarshalIndent(body, "", "  ")
	fmt.Printf("--- %s (%d)\n%s\n", url, resp.StatusCode, pretty)
}
