package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"inksink-backend/internal/chatclient"
	"inksink-backend/internal/config"
	"inksink-backend/internal/logger"
	"inksink-backend/internal/models"
)

const help = `Commands:
  /new            start a new chat
  /reset          clear the transcript, keep the chat
  /chats          list recent chats for the document
  /open <id>      open a stored chat
  /delete <id>    delete a stored chat
  /credits        show remaining credits
  /quit           exit
Anything else is sent to the assistant. Ctrl-C stops a reply.`

func main() {
	cfg := config.LoadClient()

	apiURL := flag.String("api", cfg.APIURL, "API base URL")
	token := flag.String("token", cfg.Token, "access token")
	cachePath := flag.String("cache", cfg.CachePath, "local chat cache file")
	documentFlag := flag.String("document", "", "document id the chat belongs to")
	contentFile := flag.String("file", "", "file whose text is sent as the document snapshot")
	flag.Parse()

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer appLog.Sync()

	documentID, err := uuid.Parse(*documentFlag)
	if err != nil {
		log.Fatalf("-document must be a uuid: %v", err)
	}

	store, err := chatclient.OpenBoltStore(*cachePath)
	if err != nil {
		appLog.Warn("Chat cache unavailable", "path", *cachePath, "error", err)
	}

	var cache chatclient.Cache
	if store != nil {
		defer store.Close()
		cache = store
	}

	session := chatclient.NewSession(chatclient.NewAPIClient(*apiURL, *token, nil), cache, appLog)
	if *contentFile != "" {
		data, err := os.ReadFile(*contentFile)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *contentFile, err)
		}
		session.SetContent(string(data))
	}

	ctx := context.Background()
	if err := session.LoadDocument(ctx, documentID); err != nil {
		fmt.Fprintf(os.Stderr, "could not load chats: %v\n", err)
	}
	if _, err := session.RefreshCredits(ctx); err != nil {
		appLog.Warn("Failed to load credits", "error", err)
	}

	printTranscript(session.Messages())

	out := &replyPrinter{session: session}
	session.OnChange(out.update)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigChan {
			if session.Loading() {
				session.Stop()
				continue
			}
			os.Exit(0)
		}
	}()

	fmt.Println(help)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, session, line); quit {
				return
			}
			continue
		}

		out.begin()
		if err := session.Send(ctx, line); err != nil {
			fmt.Printf("\n[error] %v\n", err)
			continue
		}
		fmt.Println()
	}
}

func runCommand(ctx context.Context, session *chatclient.Session, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/new":
		session.NewChat()
		fmt.Println("started a new chat")
	case "/reset":
		session.Reset()
	case "/credits":
		credits, err := session.RefreshCredits(ctx)
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			break
		}
		fmt.Printf("%d credits left\n", credits)
	case "/chats":
		for _, c := range session.RecentChats() {
			fmt.Printf("  %s  %s  %s\n", c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), c.Title)
		}
	case "/open", "/delete":
		id, err := uuid.Parse(arg)
		if err != nil {
			fmt.Println("usage: " + cmd + " <chat id>")
			break
		}
		if cmd == "/open" {
			err = session.SelectChat(ctx, id)
		} else {
			err = session.DeleteChat(ctx, id)
		}
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			break
		}
		if cmd == "/open" {
			printTranscript(session.Messages())
		}
	default:
		fmt.Println(help)
	}
	return false
}

func printTranscript(messages []models.ChatMessage) {
	for _, m := range messages {
		fmt.Printf("%s: %s\n\n", m.Role, m.Content)
	}
}

// replyPrinter writes the growing assistant reply as frames arrive. A final
// text that rewrites the reply is printed whole on a new line.
type replyPrinter struct {
	session *chatclient.Session

	mu      sync.Mutex
	printed string
	started bool
}

func (p *replyPrinter) begin() {
	p.mu.Lock()
	p.printed = ""
	p.started = false
	p.mu.Unlock()
}

func (p *replyPrinter) update() {
	messages := p.session.Messages()
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	if last.Role != models.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		fmt.Print("assistant: ")
		p.started = true
	}
	if strings.HasPrefix(last.Content, p.printed) {
		fmt.Print(last.Content[len(p.printed):])
	} else {
		fmt.Print("\n" + last.Content)
	}
	p.printed = last.Content
}
