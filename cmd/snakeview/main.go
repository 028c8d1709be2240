package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/i582/cfmt/cmd/cfmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kuredoro/snake_duel/config"
	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/engine/console"
	"github.com/kuredoro/snake_duel/protocol/beacon"
	"github.com/kuredoro/snake_duel/transport/ws"
)

func main() {
	defaults := config.Default()

	serverFlag := flag.String("server", "ws://localhost:8080/ws", "websocket url of the server")
	nameFlag := flag.String("name", "", "username to register")
	discoverFlag := flag.Duration("discover", 0, "look for servers on the local network for this long instead of using -server")
	widthFlag := flag.Int("width", defaults.GridWidth, "grid width of the server")
	heightFlag := flag.Int("height", defaults.GridHeight, "grid height of the server")
	logFlag := flag.String("log", "", "write logs to this file")
	flag.Parse()

	log.Logger = zerolog.Nop()
	if *logFlag != "" {
		f, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			printErr("open log file:", err)
			os.Exit(1)
		}
		defer f.Close()

		log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true})
	}

	if *nameFlag == "" {
		printErr("register:", "-name is required")
		os.Exit(1)
	}

	ctx := context.Background()

	url := *serverFlag
	if *discoverFlag > 0 {
		found, err := discover(ctx, *discoverFlag)
		if err != nil {
			printErr("discover servers:", err)
			os.Exit(1)
		}

		cfmt.Printf("{{found:}}::lightGreen|bold %s at %s, %d rooms, %d open\n",
			found.Name, found.URL, found.Rooms, found.Open)
		url = found.URL
	}

	client, err := ws.Dial(ctx, url)
	if err != nil {
		printErr("connect:", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := register(client, *nameFlag); err != nil {
		printErr("register %s:", *nameFlag, err)
		os.Exit(1)
	}

	v := newViewer(client, console.Renderer{Width: *widthFlag, Height: *heightFlag})
	if err := v.Run(ctx); err != nil {
		printErr("play:", err)
		os.Exit(1)
	}
}

// discover returns the first server announced on the local network.
func discover(ctx context.Context, wait time.Duration) (beacon.Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	node, err := beacon.NewNode(ctx, "", log.Logger)
	if err != nil {
		return beacon.Announcement{}, err
	}
	defer node.Close()

	found := make(chan beacon.Announcement)
	go beacon.Listen(ctx, node, found, log.Logger)

	if a, ok := <-found; ok {
		return a, nil
	}

	return beacon.Announcement{}, fmt.Errorf("no server answered within %v", wait)
}

func register(client *ws.Client, name string) error {
	if err := client.Send(core.EventRegisterUser, core.ClientData{Username: name}); err != nil {
		return err
	}

	for f := range client.Frames() {
		switch f.Event {
		case core.EventRegistered:
			return nil
		case core.EventRegisterError:
			var msg core.ErrorMessage
			if err := f.Decode(&msg); err != nil {
				return fmt.Errorf("decode %s: %w", f.Event, err)
			}
			return fmt.Errorf("%s", msg.Message)
		}
	}

	return fmt.Errorf("connection closed: %v", client.Err())
}

func printErr(m string, args ...interface{}) {
	if len(args) == 0 {
		panic("printErr: no arguments passed")
	}

	err := args[len(args)-1]

	header := m
	if len(args) > 1 {
		header = fmt.Sprintf(m, args[:len(args)-1]...)
	}

	cfmt.Printf("{{error:}}::lightRed|bold %s %v\n", header, err)
}
