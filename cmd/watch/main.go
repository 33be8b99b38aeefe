// Command watch signs in as a customer and prints a line whenever one of their
// orders or deposits is approved, reconnecting to the realtime stream on loss.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"topup-store/internal/history"
	"topup-store/internal/logging"
	"topup-store/internal/realtime"
	"topup-store/internal/repo"
	"topup-store/internal/supabase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	base := flag.String("api", envOr("STORE_API_URL", "http://localhost:8080"), "storefront API base URL")
	identifier := flag.String("user", os.Getenv("STORE_USER"), "username or email")
	password := flag.String("password", os.Getenv("STORE_PASSWORD"), "account password")
	flag.Parse()
	if *identifier == "" || *password == "" {
		return errors.New("user and password are required")
	}

	logger := logging.NewLogger(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "text"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &apiClient{base: strings.TrimRight(*base, "/"), http: &http.Client{Timeout: 15 * time.Second}}
	if err := c.signIn(ctx, *identifier, *password); err != nil {
		return err
	}

	w := &watcher{client: c, logger: logger, out: os.Stdout}
	if err := w.load(ctx); err != nil {
		return err
	}
	return w.run(ctx)
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

type apiClient struct {
	base  string
	http  *http.Client
	token string
}

func (c *apiClient) signIn(ctx context.Context, identifier, password string) error {
	body, _ := json.Marshal(map[string]string{"identifier": identifier, "password": password})
	var s supabase.Session
	if err := c.do(ctx, http.MethodPost, "/auth/signin", bytes.NewReader(body), &s); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if s.AccessToken == "" {
		return errors.New("sign in: no session returned")
	}
	c.token = s.AccessToken
	return nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return fmt.Errorf("%s %s: %d %s %s", method, path, resp.StatusCode, apiErr.Error, apiErr.Message)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func (c *apiClient) streamURL() (string, error) {
	u, err := url.Parse(c.base + "/realtime")
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("access_token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type watcher struct {
	client   *apiClient
	logger   *slog.Logger
	out      io.Writer
	orders   *history.Feed[repo.Order]
	deposits *history.Feed[repo.DepositRequest]
}

func (w *watcher) load(ctx context.Context) error {
	var orders []repo.Order
	if err := w.client.do(ctx, http.MethodGet, "/history/orders", nil, &orders); err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	var deposits []repo.DepositRequest
	if err := w.client.do(ctx, http.MethodGet, "/history/deposits", nil, &deposits); err != nil {
		return fmt.Errorf("load deposits: %w", err)
	}
	w.orders = history.NewOrderFeed(orders)
	w.deposits = history.NewDepositFeed(deposits)
	w.logger.Info("history loaded", "orders", len(orders), "deposits", len(deposits))
	return nil
}

func (w *watcher) run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := w.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		w.logger.Warn("realtime stream lost", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
		// Changes missed while disconnected are picked up by reloading history.
		if err := w.load(ctx); err != nil {
			w.logger.Warn("history reload failed", "error", err)
		}
	}
}

func (w *watcher) stream(ctx context.Context) error {
	target, err := w.client.streamURL()
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	w.logger.Info("realtime connected")

	for {
		var msg realtime.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		w.handle(msg)
	}
}

func (w *watcher) handle(msg realtime.Message) {
	switch {
	case strings.HasPrefix(msg.Channel, "orders:"):
		o, err := w.orders.Apply(msg.Payload)
		if err != nil {
			w.logger.Warn("bad order change", "error", err)
			return
		}
		if o != nil {
			fmt.Fprintf(w.out, "order approved: %s %s %s\n",
				strings.ReplaceAll(o.CategoryType, "_", " "), o.Amount.StringFixed(2), o.Currency)
		}
	case strings.HasPrefix(msg.Channel, "deposits:"):
		d, err := w.deposits.Apply(msg.Payload)
		if err != nil {
			w.logger.Warn("bad deposit change", "error", err)
			return
		}
		if d != nil {
			fmt.Fprintf(w.out, "deposit approved: %s %s\n", d.Amount.StringFixed(2), d.Currency)
		}
	default:
		w.logger.Debug("ignoring message", "channel", msg.Channel)
	}
}
