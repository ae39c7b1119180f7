// Package channel maintains the push subscription to the backend's
// Server-Sent Events endpoint. It reconnects on its own with a capped
// exponential backoff, reports connectivity through a callback, drops
// undecodable messages without tearing the connection down, and closes
// itself after too many consecutive failures.
package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/workflow"
)

// ErrStreamClosed is reported when the server ends the stream cleanly.
var ErrStreamClosed = errors.New("stream closed by server")

// UpdateFunc receives each decoded update.
type UpdateFunc func(workflow.Patch)

// ConnectionFunc receives connectivity changes.
type ConnectionFunc func(connected bool)

// Channel is a single self-healing SSE subscription.
//
// Callbacks run on the channel's own goroutine, one at a time, in arrival
// order. Open and Close wait for that goroutine to finish, so they must not
// be called from inside a callback.
type Channel struct {
	url        string
	httpClient *http.Client
	authToken  string
	policy     Policy
	logger     *logging.Logger

	mu        sync.Mutex
	onUpdate  UpdateFunc
	onConn    ConnectionFunc
	sub       *subscription
	attempts  int
	connected bool
	dropped   int
}

type subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Channel.
type Option func(*Channel)

// WithAuthToken sets the bearer token sent when subscribing.
func WithAuthToken(token string) Option {
	return func(c *Channel) {
		c.authToken = token
	}
}

// WithHTTPClient sets a custom HTTP client. It must not have a timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Channel) {
		c.httpClient = client
	}
}

// WithPolicy sets the reconnection policy.
func WithPolicy(p Policy) Option {
	return func(c *Channel) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// New creates a closed Channel for the SSE endpoint at url.
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url: url,
		httpClient: &http.Client{
			Timeout: 0, // No timeout for streaming connections
		},
		policy: DefaultPolicy(),
		logger: logging.Default().With("component", "channel"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUpdate registers the update callback, replacing any previous one.
func (c *Channel) OnUpdate(fn UpdateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// OnConnectionChange registers the connectivity callback, replacing any
// previous one.
func (c *Channel) OnConnectionChange(fn ConnectionFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConn = fn
}

// Open tears down any existing subscription and starts a new one bound to
// ctx. The failure counter starts from zero.
func (c *Channel) Open(ctx context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{ctx: subCtx, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	old := c.sub
	c.sub = sub
	c.attempts = 0
	c.connected = false
	c.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}

	go c.run(sub)
}

// Close releases the subscription. No callback fires after Close returns.
func (c *Channel) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.connected = false
	c.mu.Unlock()

	if sub == nil {
		return
	}
	sub.cancel()
	<-sub.done
}

// IsOpen reports whether a subscription is active or retrying.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// Connected reports whether the stream is currently established.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ReconnectAttempts returns the consecutive failure count.
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// DroppedMessages returns how many undecodable messages have been skipped.
func (c *Channel) DroppedMessages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// run is the subscription loop. It owns every callback invocation for sub.
func (c *Channel) run(sub *subscription) {
	defer close(sub.done)

	schedule := c.policy.NewBackOff()

	for {
		err := c.stream(sub, schedule)
		if sub.ctx.Err() != nil {
			return
		}

		if !c.handleDrop(sub, err) {
			return
		}

		wait := c.policy.nextDelay(schedule)
		c.logger.Debug("reconnecting", "delay", wait)

		select {
		case <-sub.ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// handleDrop records a transport failure. It returns false when the loop
// must stop, either because sub was replaced or the ceiling was exceeded.
func (c *Channel) handleDrop(sub *subscription, cause error) bool {
	c.mu.Lock()
	if c.sub != sub {
		c.mu.Unlock()
		return false
	}
	c.connected = false
	c.attempts++
	attempts := c.attempts
	exceeded := attempts > c.policy.MaxReconnectAttempts
	c.mu.Unlock()

	c.logger.Warn("update channel disconnected", "attempt", attempts, "error", cause)
	c.notifyConnection(sub, false)

	if !exceeded {
		return true
	}

	c.logger.Error("giving up on update channel", "attempts", attempts, "max", c.policy.MaxReconnectAttempts)
	c.mu.Lock()
	if c.sub == sub {
		c.sub = nil
	}
	c.mu.Unlock()
	sub.cancel()
	return false
}

func (c *Channel) markConnected(sub *subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != sub {
		return false
	}
	c.attempts = 0
	c.connected = true
	return true
}

func (c *Channel) notifyConnection(sub *subscription, connected bool) {
	c.mu.Lock()
	fn := c.onConn
	c.mu.Unlock()
	if fn == nil || sub.ctx.Err() != nil {
		return
	}
	fn(connected)
}

func (c *Channel) notifyUpdate(sub *subscription, p workflow.Patch) {
	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn == nil || sub.ctx.Err() != nil {
		return
	}
	fn(p)
}

// stream connects to the SSE endpoint and consumes it until it ends.
func (c *Channel) stream(sub *subscription, schedule backoff.BackOff) error {
	req, err := http.NewRequestWithContext(sub.ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if !c.markConnected(sub) {
		return nil
	}
	schedule.Reset()
	c.logger.Info("update channel connected", "url", c.url)
	c.notifyConnection(sub, true)

	return c.parseSSEStream(sub, resp.Body)
}

// maxEventSize caps a single event. Larger events are skipped and counted as
// dropped; the stream stays open.
const maxEventSize = 1024 * 1024

// parseSSEStream parses Server-Sent Events from the response body.
func (c *Channel) parseSSEStream(sub *subscription, body io.Reader) error {
	reader := bufio.NewReaderSize(body, 64*1024)

	var (
		dataLines []string
		size      int
		oversized bool
	)

	for {
		line, tooLong, err := readLine(reader, maxEventSize)
		if sub.ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			return fmt.Errorf("error reading stream: %w", err)
		}
		if tooLong {
			oversized = true
			dataLines = nil
			continue
		}

		// Empty line signals end of event
		if line == "" {
			switch {
			case oversized:
				c.drop(fmt.Errorf("event exceeds %d bytes", maxEventSize))
			case len(dataLines) > 0:
				c.dispatch(sub, strings.Join(dataLines, "\n"))
			}
			dataLines, size, oversized = nil, 0, false
			continue
		}

		var data string
		switch {
		case strings.HasPrefix(line, ":"):
			// Comment / keep-alive.
			continue
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		default:
			// Other SSE fields (event:, id:, retry:) are ignored; the
			// reconnection schedule is ours.
			continue
		}
		if oversized {
			continue
		}
		size += len(data) + 1
		if size > maxEventSize {
			oversized = true
			dataLines = nil
			continue
		}
		dataLines = append(dataLines, data)
	}
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed to its end and reported as tooLong.
func readLine(r *bufio.Reader, limit int) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, readErr := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > limit+2 {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		if readErr != nil {
			return "", tooLong, readErr
		}
		break
	}
	if tooLong {
		return "", true, nil
	}
	return strings.TrimRight(string(buf), "\r\n"), false, nil
}

func (c *Channel) dispatch(sub *subscription, data string) {
	patch, err := workflow.DecodePatch([]byte(data))
	if err != nil {
		c.drop(err)
		return
	}
	c.notifyUpdate(sub, patch)
}

func (c *Channel) drop(reason error) {
	c.mu.Lock()
	c.dropped++
	dropped := c.dropped
	c.mu.Unlock()
	c.logger.Warn("dropping malformed update", "error", reason, "dropped", dropped)
}
