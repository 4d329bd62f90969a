// Package discovery runs the subdomain → resolution → port scan chain and
// normalizes the scan into the graph.
package discovery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"attackgraph/internal/executor"
	"attackgraph/internal/logger"
	"attackgraph/internal/normalize"
	"attackgraph/internal/scheduler"
	"attackgraph/pkg/models"
)

// Output file names inside the discovery directory.
const (
	SubdomainsFile = "subdomains.txt"
	ResolvedFile   = "resolved.txt"
	ScanFile       = "scan.xml"
	SummaryFile    = "summary.json"
)

// Defaults for the nmap stage.
const (
	DefaultPorts   = "22,53,88,135,389,445,636,3268,3269,5985,5986,1433,3389"
	DefaultScripts = "discovery/nse/ad_dc_detect.nse,smb-os-discovery,ldap-rootdse"
)

// Config controls one discovery run.
type Config struct {
	OutDir           string
	Ports            string
	Scripts          string
	SubfinderTimeout time.Duration
	DnsxTimeout      time.Duration
	NmapTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.OutDir == "" {
		c.OutDir = filepath.Join("out", "discovery")
	}
	if c.Ports == "" {
		c.Ports = DefaultPorts
	}
	if c.Scripts == "" {
		c.Scripts = DefaultScripts
	}
	if c.SubfinderTimeout <= 0 {
		c.SubfinderTimeout = 600 * time.Second
	}
	if c.DnsxTimeout <= 0 {
		c.DnsxTimeout = 300 * time.Second
	}
	if c.NmapTimeout <= 0 {
		c.NmapTimeout = 1800 * time.Second
	}
	return c
}

// Step is the outcome of one stage.
type Step struct {
	RC       int    `json:"rc"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summary is written to summary.json after every run.
type Summary struct {
	Domain     string `json:"domain"`
	Subfinder  Step   `json:"subfinder"`
	Dnsx       Step   `json:"dnsx"`
	Nmap       Step   `json:"nmap"`
	Population int    `json:"population"`
	Hosts      int    `json:"hosts"`
}

// Result is everything a discovery run produced.
type Result struct {
	Summary Summary
	Batch   models.Batch
	// Hosts are the scanned host addresses, in scan order.
	Hosts  []string
	Limits scheduler.Limits
}

// Run executes every stage in order. Later stages still run when an earlier
// one fails; they then simply see empty input. Only local I/O failures are
// returned as errors.
func Run(ctx context.Context, runner executor.Runner, domain string, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create discovery dir: %w", err)
	}
	subdomains := filepath.Join(cfg.OutDir, SubdomainsFile)
	resolved := filepath.Join(cfg.OutDir, ResolvedFile)
	scan := filepath.Join(cfg.OutDir, ScanFile)

	sum := Summary{Domain: domain}
	sum.Subfinder = stage(ctx, runner, "subfinder", domain, cfg.SubfinderTimeout,
		[]string{"subfinder", "-all", "-d", domain, "-o", subdomains})
	sum.Dnsx = stage(ctx, runner, "dnsx", domain, cfg.DnsxTimeout,
		[]string{"dnsx", "-a", "-l", subdomains, "-o", resolved})
	sum.Nmap = stage(ctx, runner, "nmap", domain, cfg.NmapTimeout,
		[]string{"nmap", "-Pn", "-n", "-iL", resolved, "-p", cfg.Ports, "--script", cfg.Scripts, "-oX", scan})

	sum.Population = countLines(subdomains)
	batch := normalize.NmapXML(normalize.Input{Path: scan})
	hosts := scannedHosts(batch)
	sum.Hosts = len(hosts)

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.OutDir, SummaryFile), data, 0644); err != nil {
		return Result{}, fmt.Errorf("write summary: %w", err)
	}

	logger.WithFields(logger.Fields{
		"domain":     domain,
		"population": sum.Population,
		"hosts":      sum.Hosts,
	}).Info("discovery finished")

	return Result{
		Summary: sum,
		Batch:   batch,
		Hosts:   hosts,
		Limits:  scheduler.AdaptiveLimits(sum.Population),
	}, nil
}

func stage(ctx context.Context, runner executor.Runner, tool, domain string, timeout time.Duration, argv []string) Step {
	out := runner.Run(ctx, executor.Invocation{
		Module:  "discovery",
		Tool:    tool,
		Argv:    argv,
		Target:  domain,
		Timeout: timeout,
	})
	st := Step{RC: out.ExitCode, TimedOut: out.TimedOut}
	if out.Err != nil {
		st.Error = out.Err.Error()
	}
	return st
}

// countLines counts non-blank lines; a missing file counts as zero.
func countLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n
}

func scannedHosts(b models.Batch) []string {
	var hosts []string
	seen := make(map[string]struct{})
	for _, n := range b.Nodes {
		if n.Type != models.NodeHost {
			continue
		}
		ip, _ := n.Attrs["ip"].(string)
		if ip == "" {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		hosts = append(hosts, ip)
	}
	return hosts
}
