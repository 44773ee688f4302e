// Package main implements the ai-admin server: an HTTP API in front of a
// bounded-concurrency queue of long-running docker, ollama and LLM jobs.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
