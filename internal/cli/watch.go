package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// watchOptions controls what a watch session does after connecting
type watchOptions struct {
	UserID     string
	Username   string
	CreateRoom string
	MaxPlayers int
	JoinRoom   string
	Count      int
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open a WebSocket session and print pushed messages",
		Long: `Connect to the server's WebSocket endpoint and print every message it pushes.

With --user-id and --username the session logs in once connected. After a
successful login, --create opens a room hosted by that user and --join joins
an existing room.

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.CreateRoom != "" || opts.JoinRoom != "") && opts.UserID == "" {
				return errors.New("--create and --join require --user-id")
			}
			if opts.UserID != "" && opts.Username == "" {
				opts.Username = opts.UserID
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, NewOutput(cfg.Output, cmd.OutOrStdout()), opts)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user-id", "", "Log in with this user id")
	cmd.Flags().StringVar(&opts.Username, "username", "", "Display name for login (defaults to the user id)")
	cmd.Flags().StringVar(&opts.CreateRoom, "create", "", "Create a room with this name after login")
	cmd.Flags().IntVar(&opts.MaxPlayers, "max-players", 0, "Capacity of the created room (0 = server default)")
	cmd.Flags().StringVar(&opts.JoinRoom, "join", "", "Join this room id after login")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "Exit after this many messages (0 = until interrupted)")

	return cmd
}

func runWatch(ctx context.Context, out *Output, opts watchOptions) error {
	url, err := cfg.WebSocketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock the read below when interrupted
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	seen := 0
	for {
		var f inboundFrame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		out.PrintEvent(StreamEvent{Time: time.Now(), Event: f.Event, Data: string(f.Data)})
		seen++
		if opts.Count > 0 && seen >= opts.Count {
			return nil
		}

		if err := react(conn, f.Event, opts); err != nil {
			return err
		}
	}
}

// react sends the follow-up requests the options ask for
func react(conn *websocket.Conn, event string, opts watchOptions) error {
	if opts.UserID == "" {
		return nil
	}
	switch event {
	case "connection:established":
		return send(conn, "user:login", map[string]string{"userId": opts.UserID, "username": opts.Username})
	case "user:login_success":
		if opts.CreateRoom != "" {
			data := map[string]any{"name": opts.CreateRoom, "hostId": opts.UserID}
			if opts.MaxPlayers > 0 {
				data["maxPlayers"] = opts.MaxPlayers
			}
			if err := send(conn, "room:create", data); err != nil {
				return err
			}
		}
		if opts.JoinRoom != "" {
			return send(conn, "room:join", map[string]string{"roomId": opts.JoinRoom, "userId": opts.UserID})
		}
	}
	return nil
}

func send(conn *websocket.Conn, event string, data any) error {
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}
