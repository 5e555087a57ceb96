// Command smoke probes a running timeweaver API and reports per-endpoint
// status and latency. Intended for post-deploy checks: exit code 1 means a
// critical endpoint misbehaved.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type probe struct {
	Method   string          `json:"method"`
	Path     string          `json:"path"`
	Body     json.RawMessage `json:"body,omitempty"`
	Expect   int             `json:"expect"`
	Critical bool            `json:"critical"`
}

type manifest struct {
	Probes []probe `json:"probes"`
}

type result struct {
	Probe    probe
	Status   int
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base         string
		manifestPath string
		timeout      time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&manifestPath, "manifest", filepath.Join("scripts", "smoke", "targets.json"), "Path to the probe manifest")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("failed to load manifest: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var results []result
	criticalFailures := 0

	for _, p := range probes {
		res := runProbe(client, base, p)
		if !res.passed() && p.Critical {
			criticalFailures++
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Critical failures: %d of %d probes\n", criticalFailures, len(results))
	if criticalFailures > 0 {
		os.Exit(1)
	}
}

func (r result) passed() bool {
	return r.Err == nil && r.Status == r.Probe.Expect
}

func loadManifest(path string) ([]probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	for i := range m.Probes {
		if m.Probes[i].Expect == 0 {
			m.Probes[i].Expect = http.StatusOK
		}
	}
	return m.Probes, nil
}

func runProbe(client *http.Client, base string, p probe) result {
	res := result{Probe: p}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		res.Err = err
		return res
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res.Status = resp.StatusCode
	return res
}

func printReport(results []result) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		status := "OK"
		if !res.passed() {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Probe.Method, res.Probe.Path)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  Status: %d (want %d) in %s | Critical: %t\n",
			res.Status, res.Probe.Expect, res.Duration, res.Probe.Critical)
	}
}
