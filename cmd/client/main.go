// Dev client for exercising the conversation endpoint by hand: streams
// an audio file as base64 chunks and prints every frame coming back.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

type audioMessage struct {
	Type       string `json:"type"`
	Data       string `json:"data"`
	SampleRate int    `json:"sample_rate,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`
}

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	file := flag.String("file", "", "audio file to stream (raw PCM or WAV)")
	chunkSize := flag.Int("chunk", 8192, "bytes per audio chunk")
	sampleRate := flag.Int("rate", 16000, "audio sample rate")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws/chat"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go readLoop(c, done)

	if *file != "" {
		if err := streamFile(c, *file, *chunkSize, *sampleRate); err != nil {
			log.Fatal("stream:", err)
		}
	}

	ping := time.NewTicker(10 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			msg := map[string]string{"type": "ping", "timestamp": time.Now().Format(time.RFC3339)}
			if err := c.WriteJSON(msg); err != nil {
				log.Println("write ping:", err)
				return
			}
		case <-interrupt:
			log.Println("interrupt, closing connection")
			c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

func readLoop(c *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}
		switch messageType {
		case websocket.TextMessage:
			log.Printf("text: %s", message)
		case websocket.BinaryMessage:
			log.Printf("audio: %d bytes", len(message))
		}
	}
}

func streamFile(c *websocket.Conn, path string, chunkSize, sampleRate int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	log.Printf("streaming %s (%d bytes) in %d-byte chunks", path, len(data), chunkSize)

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		msg := audioMessage{
			Type:       "audio",
			Data:       base64.StdEncoding.EncodeToString(data[offset:end]),
			SampleRate: sampleRate,
			IsFinal:    end == len(data),
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
		// Pace the chunks roughly like a live microphone.
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
