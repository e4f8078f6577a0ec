// Command broker-client is an interactive REPL over the client library,
// for exercising a running broker by hand.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/msgbroker/broker/client"
)

var (
	addr string
	id   string
)

var rootCmd = &cobra.Command{
	Use:   "broker-client",
	Short: "Interactive client for the publish/subscribe message broker",
	RunE:  runRepl,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9999", "broker address")
	rootCmd.Flags().StringVar(&id, "id", "", "client id (required)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	if id == "" {
		return fmt.Errorf("--id is required")
	}

	pterm.Info.Printfln("connecting to %s as %q...", addr, id)
	c, err := client.Connect(addr, id, client.DefaultDialTimeout)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer c.Close()
	pterm.Success.Println("connected")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go printEvents(c, sigCh)

	printHelp()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		pterm.FgCyan.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		dispatchCommand(c, line)
	}
	return nil
}

func printHelp() {
	pterm.Println("commands: list | create <name> | sub <name> | unsub <name> | pub <queue> <msg> [ttl] | delete <name> | exit")
}

func dispatchCommand(c *client.Client, line string) {
	fields := strings.Fields(line)
	cmd, rest := fields[0], fields[1:]

	var err error
	switch cmd {
	case "list":
		for _, q := range c.AvailableQueues() {
			pterm.Println(q)
		}
		return
	case "create":
		err = requireArgs(rest, 1, func() error { return c.CreateQueue(rest[0]) })
	case "delete":
		err = requireArgs(rest, 1, func() error { return c.DeleteQueue(rest[0]) })
	case "sub":
		err = requireArgs(rest, 1, func() error { return c.Subscribe(rest[0]) })
	case "unsub":
		err = requireArgs(rest, 1, func() error { return c.Unsubscribe(rest[0]) })
	case "pub":
		err = dispatchPublish(c, rest)
	default:
		pterm.Warning.Printfln("unknown command %q", cmd)
		return
	}
	if err != nil {
		pterm.Error.Println(err.Error())
	}
}

func requireArgs(args []string, n int, fn func() error) error {
	if len(args) < n {
		return fmt.Errorf("missing argument")
	}
	return fn()
}

func dispatchPublish(c *client.Client, rest []string) error {
	if len(rest) < 2 {
		return fmt.Errorf("usage: pub <queue> <msg> [ttl]")
	}
	ttl := 60
	if len(rest) >= 3 {
		parsed, err := strconv.Atoi(rest[len(rest)-1])
		if err == nil {
			ttl = parsed
			rest = rest[:len(rest)-1]
		}
	}
	name := rest[0]
	text := strings.Join(rest[1:], " ")
	return c.Publish(name, []byte(text), ttl)
}

// printEvents drains the client's event queue and renders each as it
// arrives, until the client disconnects or the process receives a signal.
func printEvents(c *client.Client, sigCh <-chan os.Signal) {
	for {
		select {
		case <-sigCh:
			_ = c.Close()
			return
		default:
		}

		ev, ok := c.PollEvent(500 * time.Millisecond)
		if !ok {
			continue
		}
		switch e := ev.(type) {
		case client.QueueListEvent:
			pterm.Info.Printfln("queues: %s", strings.Join(e.Queues, ", "))
		case client.MessageEvent:
			pterm.Println(pterm.Cyan(fmt.Sprintf("[%s] %s", e.Queue, e.Text)))
		case client.BatchMessagesEvent:
			for _, text := range e.Texts {
				pterm.Println(pterm.Cyan(fmt.Sprintf("[%s] %s", e.Queue, text)))
			}
		case client.QueueDeletedEvent:
			pterm.Warning.Printfln("queue %q deleted", e.Queue)
		case client.StatusUpdateEvent:
			pterm.Success.Printfln("%s: %s", e.CommandType, e.Status)
		case client.ErrorEvent:
			pterm.Error.Printfln("%s: %s", e.CommandType, e.Message)
		case client.DisconnectedEvent:
			pterm.Error.Printfln("disconnected: %s", e.Reason)
			return
		}
	}
}
