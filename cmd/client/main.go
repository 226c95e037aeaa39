package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"chordmesh/internal/jsonrpc"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "base URL of a chordmesh node's JSON API")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout (e.g., 5s)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	api := jsonrpc.NewClient(*addr)
	currentAddr := *addr
	fmt.Printf("chordmesh interactive client. Connected to %s\n", currentAddr)
	fmt.Println("Available commands: put/get/delete/lookup/peers/use/exit")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("chordmesh[%s]> ", currentAddr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)

		switch cmd {
		case "put":
			if len(args) < 3 {
				fmt.Println("Usage: put <key> <value>")
				cancel()
				continue
			}
			key, value := args[1], args[2]
			start := time.Now()
			err := api.Put(ctx, key, value)
			delay := time.Since(start)
			if err != nil {
				fmt.Printf("Put failed (%v) | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Put succeeded (key=%s, value=%s) | latency=%s\n", key, value, delay)
			}

		case "get":
			if len(args) < 2 {
				fmt.Println("Usage: get <key>")
				cancel()
				continue
			}
			key := args[1]
			start := time.Now()
			val, err := api.Get(ctx, key)
			delay := time.Since(start)
			switch {
			case err == nil:
				fmt.Printf("Get succeeded (key=%s, value=%s) | latency=%s\n", key, val, delay)
			case errors.Is(err, jsonrpc.ErrNotFound):
				fmt.Printf("Key not found: %s | latency=%s\n", key, delay)
			default:
				fmt.Printf("Get failed: %v | latency=%s\n", err, delay)
			}

		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <key>")
				cancel()
				continue
			}
			key := args[1]
			start := time.Now()
			err := api.Delete(ctx, key)
			delay := time.Since(start)
			switch {
			case err == nil:
				fmt.Printf("Delete succeeded (key=%s) | latency=%s\n", key, delay)
			case errors.Is(err, jsonrpc.ErrNotFound):
				fmt.Printf("Key not found: %s | latency=%s\n", key, delay)
			default:
				fmt.Printf("Delete failed: %v | latency=%s\n", err, delay)
			}

		case "lookup":
			if len(args) < 2 {
				fmt.Println("Usage: lookup <key>")
				cancel()
				continue
			}
			key := args[1]
			start := time.Now()
			owner, err := api.Lookup(ctx, key)
			delay := time.Since(start)
			if err != nil {
				fmt.Printf("Lookup failed: %v | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Lookup result: owner=%s | latency=%s\n", owner, delay)
			}

		case "peers":
			start := time.Now()
			self, err := api.Peers(ctx)
			delay := time.Since(start)
			if err != nil {
				fmt.Printf("Peers failed: %v | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Peers: self=%s | latency=%s\n", self, delay)
			}

		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <addr>")
				cancel()
				continue
			}
			currentAddr = args[1]
			api = jsonrpc.NewClient(currentAddr)
			fmt.Printf("Switched connection to %s\n", currentAddr)

		case "exit", "quit":
			fmt.Println("Bye!")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		cancel()
	}
}
