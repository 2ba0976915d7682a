// Command duel is an interactive terminal client for PK song battles. It
// connects to the backend's PK WebSocket endpoint, prints game events as
// they arrive, and reads answers from stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/kelisound/songduel/internal/duel/client"
	"github.com/kelisound/songduel/internal/duel/protocol"
)

func main() {
	cmd := &cli.Command{
		Name:  "duel",
		Usage: "play a PK song battle from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "PK WebSocket base URL",
				Value: "ws://localhost:9527/ws/pk",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "user ID to connect as (random when empty)",
			},
			&cli.DurationFlag{
				Name:  "connect-timeout",
				Usage: "how long to wait for the WebSocket handshake",
				Value: 10 * time.Second,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")
	if userID == "" {
		userID = uuid.NewString()
	}

	svc := client.New(cmd.String("server"))
	printGameEvents(svc)

	dialCtx, cancel := context.WithTimeout(ctx, cmd.Duration("connect-timeout"))
	defer cancel()
	if err := svc.Connect(dialCtx, userID); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer svc.Disconnect()

	fmt.Printf("connected as %s, waiting for an opponent\n", userID)
	fmt.Println(`type "ready" to start, "state" to inspect, "quit" to leave;`)
	fmt.Println("anything else is submitted as your answer")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return nil
		case line == "ready":
			svc.ReadyGame()
		case line == "state":
			printSnapshot(svc.Snapshot())
		default:
			svc.SubmitAnswer(line)
		}
		if svc.Status() == client.StatusDisconnected {
			fmt.Println("connection closed")
			return nil
		}
	}
	return scanner.Err()
}

// printGameEvents subscribes to the inbound events the terminal UI reacts to.
func printGameEvents(svc *client.Service) {
	svc.Subscribe(protocol.TypeMatchSuccess, func(json.RawMessage) {
		fmt.Println("opponent found, type \"ready\" when you are")
	})
	svc.Subscribe(protocol.TypeGameStart, func(json.RawMessage) {
		fmt.Println("game on")
	})
	svc.Subscribe(protocol.TypeQuestionMusic, func(json.RawMessage) {
		snap := svc.Snapshot()
		if q := snap.Question; q != nil {
			fmt.Printf("round %d/%d: listen at %s (%ds to answer)\n",
				q.Round, q.TotalRounds, q.MusicURL, q.Duration)
		}
	})
	svc.Subscribe(protocol.TypeAnswerResult, func(json.RawMessage) {
		printScores(svc.Snapshot())
	})
	svc.Subscribe(protocol.TypeAnswerResultTimeout, func(json.RawMessage) {
		fmt.Println("time's up for this round")
		printScores(svc.Snapshot())
	})
	svc.Subscribe(protocol.TypeGameOver, func(json.RawMessage) {
		snap := svc.Snapshot()
		fmt.Println("game over")
		printScores(snap)
	})
	svc.Subscribe(protocol.TypeError, func(json.RawMessage) {
		if errText := svc.Snapshot().Err; errText != "" {
			fmt.Printf("server error: %s\n", errText)
		}
	})
}

func printScores(snap client.Snapshot) {
	for _, p := range snap.Players {
		name := p.Username
		if name == "" {
			name = p.ID
		}
		fmt.Printf("  %s: %d\n", name, p.Score)
	}
}

func printSnapshot(snap client.Snapshot) {
	fmt.Printf("status=%s game=%s round=%d/%d\n",
		snap.Status, snap.GameState, snap.CurrentRound, snap.TotalRounds)
	printScores(snap)
	if snap.Err != "" {
		fmt.Printf("last error: %s\n", snap.Err)
	}
}
