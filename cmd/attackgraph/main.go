package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"attackgraph/config"
	"attackgraph/internal/scheduler"
)

const defaultConfigName = "attackgraph.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return defaultConfigName
}

func applyDefaults(cfg *config.Config) {
	ag := &cfg.AttackGraph

	if ag.OutputDir == "" {
		ag.OutputDir = "out"
	}
	if ag.Scheduler.Jitter == nil {
		j := scheduler.DefaultJitter
		ag.Scheduler.Jitter = &j
	}

	if ag.Input.Redis.Addr == "" {
		ag.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if ag.Input.Redis.Key == "" {
		ag.Input.Redis.Key = "attackgraph:jobs"
	}
	if ag.Input.Redis.BlockTimeout == 0 {
		ag.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if ag.Pipeline.Workers <= 0 {
		ag.Pipeline.Workers = 4
	}
	if ag.Pipeline.BatchSize <= 0 {
		ag.Pipeline.BatchSize = 100
	}
	if ag.Pipeline.FlushInterval <= 0 {
		ag.Pipeline.FlushInterval = 2 * time.Second
	}

	if ag.Cache.Redis.Addr == "" {
		ag.Cache.Redis.Addr = ag.Input.Redis.Addr
	}
	if ag.Snapshot.Redis.Addr == "" {
		ag.Snapshot.Redis.Addr = ag.Input.Redis.Addr
	}

	if ag.Output.Mode == "" {
		ag.Output.Mode = "file"
	}
	if ag.Output.File.Path == "" {
		ag.Output.File.Path = filepath.Join(ag.OutputDir, "results.jsonl")
	}

	if ag.Logging.Level == "" {
		ag.Logging.Level = "info"
	}
	if ag.Metrics.Addr == "" {
		ag.Metrics.Addr = ":9464"
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: attackgraph <command> [flags]

commands:
  worker    consume module jobs from the Redis queue
  run       run modules against targets directly
  discover  run subfinder, dnsx and nmap for a domain
  enqueue   push module jobs onto the Redis queue
  path      query a bounded shortest path in a snapshot
  export    print a snapshot as graph export JSON
  modules   list registered modules
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	args := os.Args[2:]
	var code int
	switch os.Args[1] {
	case "worker":
		code = runWorker(args)
	case "run":
		code = runModules(args)
	case "discover":
		code = runDiscover(args)
	case "enqueue":
		code = runEnqueue(args)
	case "path":
		code = runPath(args)
	case "export":
		code = runExport(args)
	case "modules":
		code = runList(args)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		code = 2
	}
	os.Exit(code)
}
