// Terminal client for manual testing: connects to the socket server,
// joins a conversation, and mirrors everything the server pushes.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"

	"wavelength/auth"
	"wavelength/infrastructure/ws"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	SocketURL   string        `env:"SOCKET_URL,default=ws://localhost:8080/ws"`
	JwtSecret   string        `env:"JWT_SECRET,required=true"`
	UserID      string        `env:"USER_ID,required=true"`
	Username    string        `env:"USERNAME,default=anonymous"`
	DisplayName string        `env:"DISPLAY_NAME,default=Anonymous"`
	TokenTTL    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	// Self-issued token: the lab client shares the server secret.
	tokens := auth.NewTokenManager(config.JwtSecret, config.TokenTTL)
	token, err := tokens.GenerateToken(config.UserID, config.Username, config.DisplayName)
	if err != nil {
		return exitConfig, fmt.Errorf("token generation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := fmt.Sprintf("%s?token=%s", config.SocketURL, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.SocketURL, err)
	}
	defer func() { _ = conn.Close() }()

	color.New(color.FgGreen).Printf(">>> Connected as %s (Ctrl+C to quit)\n", config.DisplayName)
	fmt.Println("commands: /join <id>  /leave <id>  /typing <id>  /stats  anything else sends to the joined conversation")

	counts := struct {
		sync.Mutex
		byEvent map[string]int
	}{byEvent: make(map[string]int)}

	go func() {
		for {
			var envelope ws.Envelope
			if err := conn.ReadJSON(&envelope); err != nil {
				if ctx.Err() == nil {
					color.New(color.FgRed).Printf("connection lost: %v\n", err)
				}
				stop()
				return
			}
			counts.Lock()
			counts.byEvent[envelope.Event]++
			counts.Unlock()
			render(envelope)
		}
	}()

	var currentConversation string
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/stats" {
				counts.Lock()
				printStats(counts.byEvent)
				counts.Unlock()
				continue
			}
			if err := handleLine(conn, line, &currentConversation); err != nil {
				color.New(color.FgRed).Printf("send failed: %v\n", err)
			}
		}
	}
}

func handleLine(conn *websocket.Conn, line string, currentConversation *string) error {
	send := func(eventName string, payload any) error {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		return conn.WriteJSON(ws.Envelope{Event: eventName, Data: raw})
	}

	command, arg, _ := strings.Cut(line, " ")
	switch command {
	case "/join":
		*currentConversation = arg
		return send(ws.EventConversationJoin, ws.ConversationPayload{ConversationID: arg})
	case "/leave":
		return send(ws.EventConversationLeave, ws.ConversationPayload{ConversationID: arg})
	case "/typing":
		return send(ws.EventTypingStart, ws.ConversationPayload{ConversationID: arg})
	default:
		if *currentConversation == "" {
			return fmt.Errorf("join a conversation first with /join <id>")
		}
		return send(ws.EventMessageSend, ws.SendMessagePayload{
			ConversationID: *currentConversation,
			Content:        line,
		})
	}
}

func render(envelope ws.Envelope) {
	timestamp := time.Now().Format(time.TimeOnly)
	switch envelope.Event {
	case "message:new":
		var message struct {
			Sender  struct{ DisplayName string }
			Content string
		}
		_ = json.Unmarshal(envelope.Data, &message)
		color.New(color.FgGreen).Printf("[%s] %s: %s\n", timestamp, message.Sender.DisplayName, message.Content)
	case "user:typing", "user:stopTyping":
		color.New(color.FgYellow).Printf("[%s] %s %s\n", timestamp, envelope.Event, string(envelope.Data))
	case "user:online", "user:offline", "users:online":
		color.New(color.FgCyan).Printf("[%s] %s %s\n", timestamp, envelope.Event, string(envelope.Data))
	case "error":
		color.New(color.FgRed).Printf("[%s] %s\n", timestamp, string(envelope.Data))
	default:
		fmt.Printf("[%s] %s %s\n", timestamp, envelope.Event, string(envelope.Data))
	}
}

func printStats(byEvent map[string]int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Event", "Count"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for eventName, count := range byEvent {
		table.Append([]string{eventName, fmt.Sprintf("%d", count)})
	}
	table.Render()
}
