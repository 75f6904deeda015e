package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  complaints [limit]    list the newest complaints
  rooms                 list active rooms
  close-room <room_id>  end an active room
  online                count sessions seen within the presence TTL
  sweep                 close rooms whose participants are gone`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	// Redis is needed too: closing a room must reach both participants.
	db, rdb, err := storage.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect storage: %v", err)
	}
	storageSvc := storage.NewStorageService(db, rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command := os.Args[1]; command {
	case "complaints":
		limit := 20
		if len(os.Args) > 2 {
			limit, err = strconv.Atoi(os.Args[2])
			if err != nil || limit <= 0 {
				fmt.Println("Invalid limit. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		if err := listComplaints(ctx, storageSvc, limit); err != nil {
			log.Fatalf("Error listing complaints: %v", err)
		}
	case "rooms":
		if err := listRooms(ctx, storageSvc); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	case "close-room":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin close-room <room_id>")
			os.Exit(1)
		}
		roomID := os.Args[2]
		if err := storageSvc.CloseRoom(ctx, roomID); err != nil {
			log.Fatalf("Error closing room: %v", err)
		}
		fmt.Printf("Room %s has been closed.\n", roomID)
	case "online":
		counter := chathub.NewOnlineCounter(storageSvc, cfg.Chat)
		n, err := counter.Count(ctx)
		if err != nil {
			log.Fatalf("Error counting online users: %v", err)
		}
		fmt.Printf("%d online\n", n)
	case "sweep":
		hub := chathub.NewManagerService(storageSvc, cfg.Chat)
		n, err := hub.SweepAbandonedRooms(ctx)
		if err != nil {
			log.Fatalf("Error sweeping rooms: %v", err)
		}
		fmt.Printf("%d abandoned rooms closed.\n", n)
	default:
		fmt.Printf("Unknown command %q\n\n%s\n", command, usage)
		os.Exit(1)
	}
}

func listComplaints(ctx context.Context, s storage.Storage, limit int) error {
	complaints, err := s.GetComplaints(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tTYPE\tSEVERITY\tTARGET\tREASON")
	for _, c := range complaints {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ComplaintID, c.CreatedAt.Format(time.RFC3339), c.ComplaintType, c.Severity, c.TargetID,
			strings.ReplaceAll(c.Reason, "\n", " "))
	}
	return w.Flush()
}

func listRooms(ctx context.Context, s storage.Storage) error {
	rooms, err := s.GetActiveRooms(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tSTARTED\tUSER1\tUSER2")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.RoomID, r.StartedAt.Format(time.RFC3339), r.User1ID, r.User2ID)
	}
	return w.Flush()
}
