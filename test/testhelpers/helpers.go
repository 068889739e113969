// Package testhelpers provides common utilities and helper functions for testing the GoChat server.
//
// This package contains reusable test utilities that are shared across unit and integration tests.
// It provides functions for starting an IRC server with its HTTP gateway, dialing it over TCP or
// WebSocket, exchanging protocol lines, and asserting HTTP response properties.
package testhelpers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-ircd/internal/server"
	"github.com/Tyrowin/gochat-ircd/internal/textfile"
)

// DefaultTimeout bounds every blocking read performed by the helpers.
const DefaultTimeout = 5 * time.Second

// TestHostname is the server name used by StartIRCServer.
const TestHostname = "irc.test.org"

// Gateway is a running IRC server together with its HTTP gateway.
type Gateway struct {
	Server *server.Server
	HTTP   *httptest.Server
}

// WebSocketURL returns the ws:// address of the gateway's /ws endpoint.
func (g *Gateway) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(g.HTTP.URL, "http") + "/ws"
}

// StartIRCServer starts a server on a random local port plus an httptest
// gateway serving its routes. customize may adjust the configuration before
// the server is built. Both are stopped when the test ends.
func StartIRCServer(t *testing.T, customize func(cfg *server.Config)) *Gateway {
	t.Helper()

	cfg := server.NewConfig()
	cfg.ServerName = TestHostname
	cfg.Port = "127.0.0.1:0"
	cfg.AllowedOrigins = []string{"http://localhost:8080"}
	cfg.RateLimit.Burst = 100
	cfg.Operators = map[string]string{"admin": "secret"}
	if customize != nil {
		customize(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(cfg,
		server.WithLogger(logger),
		server.WithFiles(textfile.Static{"motd.txt": {"Welcome to the test network"}}))
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start IRC server: %v", err)
	}

	httpServer := httptest.NewServer(server.SetupRoutes(srv))
	t.Cleanup(func() {
		httpServer.Close()
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return &Gateway{Server: srv, HTTP: httpServer}
}

// LineConn is a client connection that exchanges protocol lines.
type LineConn interface {
	Send(line string) error
	ReadLine() (string, error)
	Close() error
}

type tcpConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

// DialTCP opens a raw IRC connection to addr.
func DialTCP(addr string) (LineConn, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (c *tcpConn) Send(line string) error {
	_, err := c.conn.Write([]byte(line + "\r\n"))
	return err
}

func (c *tcpConn) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

type wsConn struct {
	conn *websocket.Conn
}

// DialWebSocket connects to the gateway's WebSocket endpoint with the given
// Origin header.
func DialWebSocket(url, origin string) (LineConn, error) {
	conn, err := ConnectWebSocket(url, origin)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

func (c *wsConn) Send(line string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return "", err
	}
	_, data, err := c.conn.ReadMessage()
	return string(data), err
}

func (c *wsConn) Close() error {
	return CloseWebSocket(c.conn)
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultTimeout,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		_ = conn.Close()
		return err
	}
	return conn.Close()
}

// ExpectLine reads lines until one contains want and returns it.
func ExpectLine(t *testing.T, conn LineConn, want string) string {
	t.Helper()
	for {
		line, err := conn.ReadLine()
		if err != nil {
			t.Fatalf("Failed while waiting for %q: %v", want, err)
		}
		if strings.Contains(line, want) {
			return line
		}
	}
}

// ExpectClosed reads until the server ends the connection and fails if a
// line containing forbidden shows up first. An empty forbidden accepts any
// line.
func ExpectClosed(t *testing.T, conn LineConn, forbidden string) {
	t.Helper()
	for {
		line, err := conn.ReadLine()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				t.Fatalf("Connection was not closed by the server")
			}
			return
		}
		if forbidden != "" && strings.Contains(line, forbidden) {
			t.Fatalf("Unexpected line before close: %q", line)
		}
	}
}

// Register performs NICK/USER registration and waits for the end of the
// welcome burst.
func Register(t *testing.T, conn LineConn, nick string) {
	t.Helper()
	if err := conn.Send("NICK " + nick); err != nil {
		t.Fatalf("Failed to send NICK: %v", err)
	}
	if err := conn.Send("USER " + nick + " 0 * :" + nick); err != nil {
		t.Fatalf("Failed to send USER: %v", err)
	}
	ExpectLine(t, conn, " 004 "+nick+" ")
}

// Join joins channel and waits for the end of the NAMES reply.
func Join(t *testing.T, conn LineConn, channel string) {
	t.Helper()
	if err := conn.Send("JOIN " + channel); err != nil {
		t.Fatalf("Failed to send JOIN: %v", err)
	}
	ExpectLine(t, conn, " 366 ")
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, expected) {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: DefaultTimeout,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}
