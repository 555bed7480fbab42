package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// send marshals one typed envelope onto the socket.
func send(c *websocket.Conn, msgType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.WriteJSON(envelope{Type: msgType, Payload: data})
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	player := flag.String("player", "player_0", "player id to enter as")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var env envelope
			if err := c.ReadJSON(&env); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV %s: %s", env.Type, string(env.Payload))
		}
	}()

	log.Printf("Entering world as %s", *player)
	if err := send(c, "enter_world", map[string]string{"player_id": *player}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: 'move <x> <y>', 'talk <player_id> <message>', 'leave'")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "move":
				if len(fields) != 3 {
					log.Println("Usage: move <x> <y>")
					continue
				}
				x, _ := strconv.ParseFloat(fields[1], 64)
				y, _ := strconv.ParseFloat(fields[2], 64)
				payload := map[string]interface{}{
					"player_id": *player,
					"data": map[string]interface{}{
						"x":         x,
						"y":         y,
						"animation": "walk",
						"timestamp": time.Now().UnixMilli(),
					},
				}
				if err := send(c, "move", payload); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: move")

			case "talk":
				if len(fields) < 3 {
					log.Println("Usage: talk <player_id> <message>")
					continue
				}
				payload := map[string]interface{}{
					"from":    *player,
					"players": []string{fields[1]},
					"message": strings.Join(fields[2:], " "),
				}
				if err := send(c, "talk", payload); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: talk")

			case "leave":
				payload := map[string]string{"player_id": *player}
				if err := send(c, "leave_world", payload); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: leave_world")

			default:
				log.Printf("Unknown command %q", fields[0])
			}
		}
	}
}
