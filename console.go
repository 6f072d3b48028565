package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"seriallink/controller"
)

var errQuit = errors.New("quit requested")

const commandList = "/connect /disconnect /break /history /clear /stats /params /help /quit"

// runConsole sends stdin lines on the link and handles slash commands until
// input ends, /quit is typed or ctx is done.
func runConsole(ctx context.Context, ctrl *controller.Controller, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := handleLine(ctrl, line, out); err != nil {
				return err
			}
		}
	}
}

func handleLine(ctrl *controller.Controller, line string, out io.Writer) error {
	if !strings.HasPrefix(line, "/") {
		if line != "" {
			ctrl.RequestSend(line)
		}
		return nil
	}

	switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
	case "/quit", "/exit":
		return errQuit
	case "/connect":
		ctrl.RequestConnect()
	case "/disconnect":
		ctrl.RequestDisconnect()
	case "/break":
		ctrl.RequestBreak()
	case "/history":
		for _, e := range ctrl.History() {
			fmt.Fprintln(out, e.String())
		}
	case "/clear":
		ctrl.ClearHistory()
	case "/stats":
		printStats(out, ctrl)
	case "/params":
		fmt.Fprintf(out, "%s (receive timeout %d ms)\n", ctrl.Parameters(), ctrl.Parameters().RecvTimeoutMs())
	case "/help":
		fmt.Fprintf(out, "Commands: %s\n", commandList)
	default:
		fmt.Fprintf(out, "Unknown command %s, try /help\n", cmd)
	}
	return nil
}

func printStats(out io.Writer, ctrl *controller.Controller) {
	s := ctrl.Stats()
	fmt.Fprintf(out, "State: %s\n", ctrl.State())
	fmt.Fprintf(out, "Messages: %d in, %d out\n", s.MessagesIn, s.MessagesOut)
	fmt.Fprintf(out, "Bytes: %d in, %d out\n", s.BytesIn, s.BytesOut)
	fmt.Fprintf(out, "Errors: %d\n", s.Errors)
	if s.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", s.LastError)
	}
	if !s.ConnectedAt.IsZero() && ctrl.IsConnected() {
		fmt.Fprintf(out, "Connected for %s\n", time.Since(s.ConnectedAt).Round(time.Second))
	}
}
