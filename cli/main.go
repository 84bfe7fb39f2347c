// Package main provides a terminal client that plays a game session against the game service.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/domain"
)

// APIError is the error body returned by the game service.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	Code      string `json:"code,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Client talks to the player API and its live feed.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	conn    *websocket.Conn
	done    chan struct{}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		done:    make(chan struct{}),
	}
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// StartSession buys a package, or resumes the active session for the product.
func (c *Client) StartSession(productID int64, pkg string) (string, error) {
	var resp domain.CreateSessionResponse
	err := c.do(http.MethodPost, "/v1/sessions", domain.CreateSessionRequest{ProductID: productID, PackageType: pkg}, &resp)
	if apiErr, ok := err.(*APIError); ok && apiErr.Code == "CONFLICT" && apiErr.SessionID != "" {
		fmt.Printf("Resuming active session %s\n", apiErr.SessionID)
		return apiErr.SessionID, nil
	}
	if err != nil {
		return "", err
	}
	fmt.Printf("Bought %s package: %d attempt(s) for %d cents\n", pkg, resp.TotalAttempts, resp.AmountPaid)
	return resp.SessionID, nil
}

// Play submits one choice.
func (c *Client) Play(sessionID, choice string) (*domain.PlayRoundResult, error) {
	var res domain.PlayRoundResult
	if err := c.do(http.MethodPost, "/v1/sessions/"+sessionID+"/rounds", domain.PlayRoundRequest{Choice: choice}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Subscribe opens the live feed of a session.
func (c *Client) Subscribe(sessionID string) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/v1/sessions/" + sessionID + "/feed"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	c.conn = conn
	return nil
}

// Close closes the feed connection.
func (c *Client) Close() error {
	close(c.done)
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ReadFeed prints feed messages until the connection closes.
func (c *Client) ReadFeed() {
	for {
		select {
		case <-c.done:
			return
		default:
			var msg domain.FeedMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					select {
					case <-c.done:
					default:
						log.Printf("Feed error: %v", err)
					}
				}
				return
			}
			if msg.Type == domain.FeedRoundResult {
				continue
			}
			data, _ := json.Marshal(msg.Data)
			fmt.Printf("\n[feed] %s %s\n> ", msg.Type, string(data))
		}
	}
}

func printResult(res *domain.PlayRoundResult) {
	verdict := "miss"
	if res.IsWin {
		verdict = "WIN"
	}
	fmt.Printf("Round %d: shown %s -> %s | wins %d | attempts %d/%d | %s\n",
		res.SequenceIndex+1, res.ShownOutcome, verdict, res.Wins, res.AttemptsUsed, res.TotalAttempts, res.Status)
	if res.PrizeCode != "" {
		fmt.Printf("Prize code: %s\n", res.PrizeCode)
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "game service base URL")
	token := flag.String("token", os.Getenv("GAME_TOKEN"), "bearer token")
	secret := flag.String("secret", "", "mint a token locally with this JWT secret instead of -token")
	userID := flag.Int64("user", 1, "user id for a locally minted token")
	productID := flag.Int64("product", 1, "product id to play for")
	pkg := flag.String("package", "multi", "package type: single or multi")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *token == "" && *secret != "" {
		minted, err := auth.NewVerifier(*secret).Issue(*userID, "cli", domain.RoleUser, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		*token = minted
	}
	if *token == "" {
		log.Fatal("a -token or -secret is required")
	}

	client := NewClient(*addr, *token)
	sessionID, err := client.StartSession(*productID, *pkg)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	if err := client.Subscribe(sessionID); err != nil {
		log.Printf("Live feed unavailable: %v", err)
	} else {
		go client.ReadFeed()
	}
	defer client.Close()

	fmt.Printf("Session %s\n", sessionID)
	fmt.Println("\nPick a face: type A or B and press Enter.")
	fmt.Println("Commands: /quit to exit")
	fmt.Println()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.ToUpper(strings.TrimSpace(scanner.Text()))
			if input == "" {
				continue
			}
			if input == "/QUIT" {
				fmt.Println("Bye!")
				return
			}

			res, err := client.Play(sessionID, input)
			if err != nil {
				log.Printf("Play failed: %v", err)
				continue
			}
			printResult(res)

			if res.Status != domain.SessionStatusActive {
				fmt.Println("Session finished.")
				return
			}
		}
	}
}
