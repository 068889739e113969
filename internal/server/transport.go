package server

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"golang.org/x/text/encoding/charmap"
)

const (
	writeWait = 10 * time.Second

	// maxFrameLines bounds how many protocol lines one WebSocket frame may carry.
	maxFrameLines = 8
)

// decodeLine returns the line as UTF-8. Legacy clients that send Latin-1 are
// decoded as ISO-8859-1 rather than producing replacement characters.
func decodeLine(line []byte) string {
	if utf8.Valid(line) {
		return string(line)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(line)
	if err != nil {
		return strings.ToValidUTF8(string(line), "?")
	}
	return string(decoded)
}

// tcpTransport frames a raw TCP stream into CRLF-terminated lines.
type tcpTransport struct {
	conn    net.Conn
	reader  *bufio.Reader
	maxLine int
	writeMu sync.Mutex
}

func newTCPTransport(conn net.Conn, maxLine int) *tcpTransport {
	return &tcpTransport{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, maxLine),
		maxLine: maxLine,
	}
}

// ReadLine returns the next line without its terminator. Lines longer than
// the configured maximum are truncated.
func (t *tcpTransport) ReadLine() (string, error) {
	var line []byte
	for {
		chunk, err := t.reader.ReadSlice('\n')
		if room := t.maxLine - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if len(line) > 0 {
				return decodeLine(bytes.TrimRight(line, "\r\n")), nil
			}
			return "", err
		}
		return decodeLine(bytes.TrimRight(line, "\r\n")), nil
	}
}

func (t *tcpTransport) WriteLine(line string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := t.conn.Write([]byte(line + "\r\n"))
	return err
}

func (t *tcpTransport) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// wsTransport carries protocol lines in WebSocket text frames. Inbound frames
// may hold several lines; every outbound line is sent as its own frame.
type wsTransport struct {
	conn    *websocket.Conn
	addr    string
	maxLine int
	pending []string
	writeMu sync.Mutex
}

func newWSTransport(conn *websocket.Conn, addr string, maxLine int) *wsTransport {
	conn.SetReadLimit(int64(maxLine * maxFrameLines))
	return &wsTransport{conn: conn, addr: addr, maxLine: maxLine}
}

func (t *wsTransport) ReadLine() (string, error) {
	for len(t.pending) == 0 {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		for _, raw := range bytes.Split(data, []byte{'\n'}) {
			raw = bytes.TrimRight(raw, "\r")
			if len(raw) == 0 {
				continue
			}
			if len(raw) > t.maxLine {
				raw = raw[:t.maxLine]
			}
			t.pending = append(t.pending, decodeLine(raw))
		}
	}
	line := t.pending[0]
	t.pending = t.pending[1:]
	return line, nil
}

func (t *wsTransport) WriteLine(line string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *wsTransport) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *wsTransport) RemoteAddr() string {
	return t.addr
}

// Close sends a close frame on a best-effort basis and closes the socket.
func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return t.conn.Close()
}
