// Command rconn-cli is a small interactive client for exercising a
// Handler/netreactor connection by hand: it reads a command line at a
// time, writes it to Redis and prints back the decoded response.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rconn/rconn"
	"github.com/go-rconn/rconn/netreactor"
	"github.com/go-rconn/rconn/resp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "Redis address")
	autoReconnect := flag.Bool("auto-reconnect", true, "keep commands buffered across reconnects")
	flag.Parse()

	fmt.Println("rconn CLI")
	fmt.Println("=========")
	fmt.Println("Type a Redis command and its arguments, e.g.: SET foo bar")
	fmt.Println("Type quit to exit.")
	fmt.Println()

	h := rconn.NewHandler(rconn.Options{AutoReconnect: *autoReconnect}, resp.New())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, err := netreactor.Dial(ctx, "tcp", *addr, h)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			break
		}

		fields := strings.Fields(line)
		name := fields[0]
		args := make([][]byte, 0, len(fields)-1)
		for _, f := range fields[1:] {
			args = append(args, []byte(f))
		}

		runCommand(h, name, args)
	}
}

func runCommand(h *rconn.Handler, name string, args [][]byte) {
	out := rconn.NewBufferedOutput()
	cmd := rconn.NewRedisCommand(strings.ToUpper(name), out, args...)

	if _, err := h.Write(cmd); err != nil {
		fmt.Printf("(error) %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cmd.Wait(ctx); err != nil {
		fmt.Printf("(error) %v\n", err)
		return
	}
	if err := cmd.Err(); err != nil {
		fmt.Printf("(error) %v\n", err)
		return
	}

	printValue(out.Value(), 0)
}

func printValue(v rconn.Value, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v.Type {
	case rconn.TypeSimpleString:
		fmt.Printf("%s%s\n", indent, v.Str)
	case rconn.TypeError:
		fmt.Printf("%s(error) %s\n", indent, v.Str)
	case rconn.TypeInteger:
		fmt.Printf("%s(integer) %d\n", indent, v.Int)
	case rconn.TypeNull:
		fmt.Printf("%s(nil)\n", indent)
	case rconn.TypeBulkString:
		fmt.Printf("%s%q\n", indent, string(v.Bulk))
	case rconn.TypeArray:
		if len(v.Array) == 0 {
			fmt.Printf("%s(empty array)\n", indent)
			return
		}
		for i, elem := range v.Array {
			fmt.Printf("%s%d)\n", indent, i+1)
			printValue(elem, depth+1)
		}
	}
}
