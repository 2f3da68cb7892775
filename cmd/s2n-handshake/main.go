package main

import (
	"fmt"
	"os"

	pkgversion "github.com/gilwalzer/s2n/pkg/version"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		demoCommand(os.Args[2:])
	case "metrics":
		metricsCommand(os.Args[2:])
	case "version":
		fmt.Printf("s2n-handshake version %s\n", getVersion())
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		if gitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", gitCommit)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`s2n-handshake - TLS handshake driver demo

Usage:
  s2n-handshake <command> [flags]

Commands:
  demo      Run a client/server handshake in-process over a non-blocking pipe
  metrics   Run a batch of handshakes and print the Prometheus metrics
  version   Print version information
  help      Show this help`)
}
