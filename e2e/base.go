package e2e

import (
	"bytes"
	"direct-chat/domain/event"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// BaseSuite talks to a running server over REST and websocket.
type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set")
	}
}

// Step prints a colorized header and runs fn as a subtest.
func (s *BaseSuite) Step(name string, fn func()) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.Run(name, func() {
		s.T().Log(header)
		fn()
	})
}

// Client is one user agent with its own cookie jar.
type Client struct {
	s     *BaseSuite
	http  *http.Client
	Token string
	ID    string
}

func (s *BaseSuite) NewClient() *Client {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	return &Client{s: s, http: &http.Client{Jar: jar, Timeout: s.Config.Timeout}}
}

// Do sends body as JSON and decodes the response into out when out is not nil.
func (c *Client) Do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		c.s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, "http://"+c.s.Config.ServerAddr+path, reader)
	c.s.Require().NoError(err)
	r.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		r.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(r)
	c.s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	c.s.Require().NoError(err)

	t.Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if c.s.Config.DebugJSON {
		t.Logf("RESPONSE: %s", raw)
	}
	if out != nil && len(raw) > 0 {
		c.s.Require().NoError(json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

// Socket opens the websocket of the client, authenticated by its token.
func (c *Client) Socket(t *testing.T) *Socket {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: c.s.Config.ServerAddr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(c.Token)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	c.s.Require().NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	return &Socket{s: c.s, conn: conn}
}

type Socket struct {
	s    *BaseSuite
	conn *websocket.Conn
}

func (k *Socket) Send(name event.Name, payload any) {
	envelope, err := event.NewEnvelope(name, payload)
	k.s.Require().NoError(err)
	k.s.Require().NoError(k.conn.WriteJSON(envelope))
}

// Expect skips frames until one named name arrives and decodes it into v.
func (k *Socket) Expect(name event.Name, v any) {
	k.s.Require().NoError(k.conn.SetReadDeadline(time.Now().Add(k.s.Config.Timeout)))
	for {
		var envelope event.Envelope
		k.s.Require().NoError(k.conn.ReadJSON(&envelope), "waiting for %s", name)
		if envelope.Event == name {
			k.s.Require().NoError(envelope.Decode(v))
			return
		}
	}
}

func (k *Socket) Close() {
	_ = k.conn.Close()
}
