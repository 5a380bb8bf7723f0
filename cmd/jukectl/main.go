// Package main provides the jukebox command-line client.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/tubejuke/internal/api/connect"
	"github.com/osa030/tubejuke/internal/app/notification"
	"github.com/osa030/tubejuke/internal/domain/track"
)

var (
	app    = kingpin.New("jukectl", "tubejuke jukebox client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("JUKEBOX_SERVER").String()
	token  = app.Flag("token", "Admin token for skip (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// add command
	addCmd = app.Command("add", "Add a video to the queue")
	addRef = addCmd.Arg("url", "Video URL or ID").Required().String()

	// queue command
	queueCmd = app.Command("queue", "Show the current item, pending items and history").Alias("ls")

	// skip command
	skipCmd = app.Command("skip", "Skip the current item")

	// watch command
	watchCmd = app.Command("watch", "Stream queue and playback changes")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	switch command {
	case addCmd.FullCommand():
		add(client, *addRef)
	case queueCmd.FullCommand():
		showQueue(client)
	case skipCmd.FullCommand():
		skip(client)
	case watchCmd.FullCommand():
		watch(client)
	}
}

func add(client *apiconnect.Client, reference string) {
	// Enqueue resolves metadata server-side, which may walk every tier
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	item, err := client.Enqueue(ctx, reference)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Queued: %s\n", formatItem(item))
	if item.IsDegraded() {
		fmt.Println("  (metadata unavailable, playback will still be attempted)")
	}
}

func showQueue(client *apiconnect.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := client.GetQueue(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if q.Current != nil {
		fmt.Printf("Now playing: %s\n", formatItem(*q.Current))
	} else {
		fmt.Println("Now playing: (nothing)")
	}

	fmt.Printf("\nPending (%d):\n", len(q.Pending))
	for i, item := range q.Pending {
		fmt.Printf("  %2d. %s\n", i+1, formatItem(item))
	}

	if len(q.History) > 0 {
		fmt.Printf("\nRecently finished:\n")
		for i := len(q.History) - 1; i >= 0; i-- {
			f := q.History[i]
			fmt.Printf("  [%s] %s", f.Outcome, formatItem(f.Item))
			if f.Reason != "" {
				fmt.Printf(" - %s", f.Reason)
			}
			fmt.Println()
		}
	}
}

func skip(client *apiconnect.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	skipped, err := client.Skip(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if skipped {
		fmt.Println("Skipped")
	} else {
		fmt.Println("Nothing is playing")
	}
}

func watch(client *apiconnect.Client) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Watching. Press Ctrl+C to exit.")
	err := client.Watch(ctx, func(n *apiconnect.Notification) error {
		printNotification(n)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}

func printNotification(n *apiconnect.Notification) {
	fmt.Printf("\n[Sequence: %d] %s ", n.SequenceNo, n.Timestamp.Local().Format(time.TimeOnly))

	switch n.Type {
	case notification.TypeSnapshot:
		fmt.Println("=== CURRENT STATE ===")
	case notification.TypeEnqueued:
		fmt.Println("=== ENQUEUED ===")
	case notification.TypeItemStarted:
		fmt.Println("=== STARTED ===")
	case notification.TypeItemEnded:
		fmt.Println("=== ENDED ===")
	case notification.TypeItemSkipped:
		fmt.Println("=== SKIPPED ===")
	case notification.TypeItemFailed:
		fmt.Println("=== FAILED ===")
	case notification.TypeQueueEmpty:
		fmt.Println("=== QUEUE EMPTY ===")
	default:
		fmt.Printf("=== UNKNOWN EVENT (%s) ===\n", n.Type)
	}

	if n.Item != nil {
		fmt.Printf("  Item: %s\n", formatItem(*n.Item))
	}
	if n.Reason != "" {
		fmt.Printf("  Reason: %s\n", n.Reason)
	}
	if n.Current != nil {
		fmt.Printf("  Now playing: %s\n", formatItem(*n.Current))
	}
	fmt.Printf("  Pending: %d\n", len(n.Pending))
}

func formatItem(item track.QueueItem) string {
	if item.DurationSeconds > 0 {
		return fmt.Sprintf("%s [%s] (%s)", item.Title, item.Duration(), item.Reference)
	}
	return fmt.Sprintf("%s (%s)", item.Title, item.Reference)
}
