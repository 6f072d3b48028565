package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"seriallink/link"
	"seriallink/serial"
)

// inbox forwards session events to a channel
type inbox struct {
	messages chan string
}

func (b *inbox) OnNotify(ev link.Event) {
	select {
	case b.messages <- ev.Message:
	default:
	}
}

func main() {
	mode := flag.String("mode", "send", "Mode: send, receive, or loopback")
	device := flag.String("device", "/dev/ttyS0", "Serial device")
	baud := flag.Int("baud", 9600, "Baud rate")
	message := flag.String("message", "TEST", "Message to send")
	count := flag.Int("count", 10, "Number of messages")
	interval := flag.Duration("interval", 1*time.Second, "Interval between sends")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	params := link.DefaultParameters()
	if err := params.SetDevice(*device); err != nil {
		log.Fatal(err)
	}
	if err := params.SetBaudRate(*baud); err != nil {
		log.Fatal(err)
	}

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	session := link.NewSession("serialtest", serial.NewOpener(logger), logger)
	box := &inbox{messages: make(chan string, 64)}
	session.AddListener(box)

	if err := session.Open(params); err != nil {
		log.Fatalf("Failed to open port: %v", err)
	}
	defer session.Close()

	switch *mode {
	case "send":
		sendTest(session, *message, *count, *interval)
	case "receive":
		receiveTest(session, box)
	case "loopback":
		loopbackTest(session, box, *message)
	default:
		log.Fatal("Invalid mode. Use: send, receive, or loopback")
	}
}

func sendTest(session *link.Session, message string, count int, interval time.Duration) {
	fmt.Printf("Sending on %s\n", session.Parameters())
	fmt.Printf("Message: %s\n", message)
	fmt.Printf("Count: %d, Interval: %v\n\n", count, interval)

	for i := 0; i < count; i++ {
		msg := fmt.Sprintf("[%d] %s %s\n", i+1, message, time.Now().Format("15:04:05.000"))
		if err := session.Write(msg); err != nil {
			log.Printf("Write error: %v", err)
			continue
		}
		fmt.Printf("Sent %d bytes: %s", len(msg), msg)
		time.Sleep(interval)
	}
	fmt.Println("\nSend test complete")
}

func receiveTest(session *link.Session, box *inbox) {
	fmt.Printf("Listening on %s\n", session.Parameters())
	fmt.Println("Press Ctrl+C to stop")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	totalBytes := 0
	for {
		select {
		case msg := <-box.messages:
			totalBytes += len(msg)
			fmt.Printf("[%s] Received %d bytes (total: %d):\n", time.Now().Format("15:04:05.000"), len(msg), totalBytes)
			fmt.Printf("%s\n", msg)
		case <-interrupt:
			fmt.Printf("\nReceived %d bytes in total\n", totalBytes)
			return
		}
	}
}

func loopbackTest(session *link.Session, box *inbox, message string) {
	fmt.Printf("Loopback test on %s\n", session.Parameters())
	fmt.Println("Connect pins 2 and 3 (TX and RX) with a jumper")

	for i := 0; i < 5; i++ {
		testMsg := fmt.Sprintf("%s-%d", message, i+1)
		fmt.Printf("Sending: %s\n", testMsg)

		if err := session.Write(testMsg + "\n"); err != nil {
			log.Printf("Write error: %v", err)
			continue
		}

		// Bytes may arrive in several chunks within the receive timeout
		var received string
		deadline := time.After(time.Second)
	collect:
		for len(received) < len(testMsg)+1 {
			select {
			case msg := <-box.messages:
				received += msg
			case <-deadline:
				break collect
			}
		}

		switch {
		case received == testMsg+"\n":
			fmt.Printf("  ✓ Loopback OK: %s\n", testMsg)
		case received == "":
			fmt.Printf("  ✗ No data received (timeout)\n")
		default:
			fmt.Printf("  ? Received different: %q\n", received)
		}

		time.Sleep(1 * time.Second)
	}
}
