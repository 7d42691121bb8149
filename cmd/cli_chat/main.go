package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"rag-chat/internal/app"
	"rag-chat/internal/config"
	"rag-chat/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer comps.Close()

	sessionID := service.DefaultSessionID
	if len(os.Args) > 1 {
		sessionID = os.Args[1]
	}

	fmt.Printf("---- Chat (sesion %q) ----\n", sessionID)
	fmt.Println("Comandos: /historial, /limpiar, /salir")
	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)

		switch text {
		case "":
			continue
		case "/salir", "salir":
			return
		case "/historial":
			printHistory(comps.Chat, sessionID)
			continue
		case "/limpiar":
			if err := comps.Chat.Clear(sessionID); err != nil {
				fmt.Printf("No se pudo limpiar: %v\n", err)
			} else {
				fmt.Println("Historial borrado.")
			}
			continue
		}

		turn, err := comps.Chat.HandleTurn(ctx, sessionID, text, service.DefaultTurnOptions())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("Profeta > %s\n", turn.AssistantMessage.Content)
		if turn.RetrievalFailure != service.RetrievalOK || turn.CompletionFailure != service.CompletionOK {
			fmt.Printf("  [contexto: %d fragmentos, recuperacion=%q, generacion=%q]\n",
				turn.ContextChunks, turn.RetrievalFailure, turn.CompletionFailure)
		}
	}
}

func printHistory(chat *service.ChatService, sessionID string) {
	session, err := chat.History(sessionID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(session.Messages) == 0 {
		fmt.Println("(sin mensajes)")
		return
	}
	for _, m := range session.Messages {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.Role(), m.Content)
	}
}
