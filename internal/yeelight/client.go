package yeelight

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/lightrelay/internal/color"
)

// Default timeouts for bulb communication.
const (
	// defaultConnectTimeout is the maximum time to wait for the TCP dial.
	defaultConnectTimeout = 10 * time.Second

	// defaultRequestTimeout is the maximum time for one request/response
	// exchange.
	defaultRequestTimeout = 5 * time.Second
)

// Config holds bulb connection settings. Zero values select defaults.
type Config struct {
	// Port is used when an address carries no port. Default: 55443.
	Port int

	// ConnectTimeout bounds the TCP dial. Default: 10s.
	ConnectTimeout time.Duration

	// RequestTimeout bounds a single request/response exchange. A shorter
	// context deadline takes precedence. Default: 5s.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}

// Stats holds per-bulb operational counters.
type Stats struct {
	Address      string    `json:"address"`
	Requests     uint64    `json:"requests"`
	Failures     uint64    `json:"failures"`
	LastActivity time.Time `json:"last_activity"`
	Closed       bool      `json:"closed"`
}

// Bulb is an attached connection to one Yeelight device.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Request/response exchanges are serialised per bulb.
type Bulb struct {
	cfg     Config
	conn    net.Conn
	reader  *bufio.Reader
	address string

	// mu serialises exchanges so responses are matched to the right caller.
	mu     sync.Mutex
	nextID atomic.Uint64

	// partial holds the start of a line cut off by a timed-out read. The
	// next exchange completes it before reading on. Guarded by mu.
	partial []byte
	closed  atomic.Bool

	requests     atomic.Uint64
	failures     atomic.Uint64
	lastActivity atomic.Int64
}

// Dial opens a TCP connection to a bulb. Addresses without a port use
// cfg.Port (default 55443).
//
// Parameters:
//   - ctx: Context for cancellation of the dial
//   - address: Host, host:port, or bracketed IPv6 literal
//   - cfg: Connection configuration
//
// Returns:
//   - net.Conn: Open connection, ready for Attach
//   - error: ErrInvalidAddress or ErrConnectionFailed
func Dial(ctx context.Context, address string, cfg Config) (net.Conn, error) {
	cfg = cfg.withDefaults()

	hostPort, err := NormalizeAddress(address, cfg.Port)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, hostPort, err)
	}
	return conn, nil
}

// NormalizeAddress returns address as host:port, adding port when missing.
func NormalizeAddress(address string, port int) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	if host, p, err := net.SplitHostPort(address); err == nil {
		if host == "" {
			return "", fmt.Errorf("%w: %q has no host", ErrInvalidAddress, address)
		}
		if n, convErr := strconv.Atoi(p); convErr != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("%w: %q has invalid port", ErrInvalidAddress, address)
		}
		return address, nil
	}

	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// Attach wraps an open connection as a Bulb.
//
// Parameters:
//   - conn: Connection returned by Dial (or any net.Conn speaking the protocol)
//   - cfg: Request configuration
//
// Returns:
//   - *Bulb: Attached bulb; it owns conn from now on
//   - error: ErrAttach if conn is nil
func Attach(conn net.Conn, cfg Config) (*Bulb, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrAttach)
	}

	address := ""
	if addr := conn.RemoteAddr(); addr != nil {
		address = addr.String()
	}

	b := &Bulb{
		cfg:     cfg.withDefaults(),
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, maxLineSize),
		address: address,
	}
	b.lastActivity.Store(time.Now().Unix())
	return b, nil
}

// Address returns the remote address of the bulb.
func (b *Bulb) Address() string {
	return b.address
}

// SetRGB sets the bulb to an absolute 24-bit color.
func (b *Bulb) SetRGB(ctx context.Context, value color.Packed, effect Effect, duration time.Duration) error {
	if value > maxRGB {
		return fmt.Errorf("%w: rgb %#x out of range", ErrInvalidParam, uint32(value))
	}
	ms, err := validateEffect(effect, duration)
	if err != nil {
		return err
	}
	return b.call(ctx, methodSetRGB, []any{uint32(value), string(effect), ms})
}

// SetBright sets the bulb brightness as a percentage (1-100).
func (b *Bulb) SetBright(ctx context.Context, brightness int, effect Effect, duration time.Duration) error {
	if brightness < minBrightness || brightness > maxBrightness {
		return fmt.Errorf("%w: brightness %d not in %d-%d", ErrInvalidParam, brightness, minBrightness, maxBrightness)
	}
	ms, err := validateEffect(effect, duration)
	if err != nil {
		return err
	}
	return b.call(ctx, methodSetBright, []any{brightness, string(effect), ms})
}

// Stats returns a snapshot of the bulb counters.
func (b *Bulb) Stats() Stats {
	return Stats{
		Address:      b.address,
		Requests:     b.requests.Load(),
		Failures:     b.failures.Load(),
		LastActivity: time.Unix(b.lastActivity.Load(), 0),
		Closed:       b.closed.Load(),
	}
}

// Close closes the underlying connection. Safe to call more than once.
func (b *Bulb) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("closing bulb %s: %w", b.address, err)
	}
	return nil
}

// call performs one request/response exchange.
func (b *Bulb) call(ctx context.Context, method string, params []any) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests.Add(1)
	if err := b.exchange(ctx, method, params); err != nil {
		b.failures.Add(1)
		return err
	}
	b.lastActivity.Store(time.Now().Unix())
	return nil
}

func (b *Bulb) exchange(ctx context.Context, method string, params []any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	default:
	}

	id := b.nextID.Add(1)
	msg, err := encodeRequest(id, method, params)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(b.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := b.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%s: set deadline: %w", method, err)
	}

	// Unblock I/O when the context is cancelled before the deadline. A
	// wake-up that already started must finish before the next exchange
	// sets its own deadline.
	woken := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(woken)
		_ = b.conn.SetDeadline(time.Now()) //nolint:errcheck // best effort wake-up
	})
	defer func() {
		if !stop() {
			<-woken
		}
	}()

	if _, err := b.conn.Write(msg); err != nil {
		return b.ioError(ctx, method, "write", err)
	}

	for {
		line, err := b.readLine()
		if err != nil {
			return b.ioError(ctx, method, "read", err)
		}
		if len(line) == 0 {
			continue
		}

		resp, err := decodeResponse(line)
		if err != nil {
			// garbage or the tail of an oversized line; the answer
			// to this request is still to come
			continue
		}
		if resp.isNotification() || resp.ID != id {
			// props push or a late answer to an abandoned request
			continue
		}
		return resp.checkResult(method)
	}
}

// readLine reads one protocol line without its terminator. Bytes read
// before an error are kept in b.partial so a line split by a timeout is
// reassembled on the next call instead of being parsed as two fragments.
func (b *Bulb) readLine() ([]byte, error) {
	chunk, err := b.reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) || len(b.partial)+len(chunk) > maxLineSize {
		b.partial = nil
		return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrProtocol, maxLineSize)
	}
	if err != nil {
		b.partial = append(b.partial, chunk...)
		return nil, err
	}

	line := append(b.partial, chunk...)
	b.partial = nil
	return bytes.TrimRight(line, "\r\n"), nil
}

// ioError classifies a read/write failure.
func (b *Bulb) ioError(ctx context.Context, method, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", method, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s %s", ErrTimeout, method, op)
	}
	if errors.Is(err, net.ErrClosed) && b.closed.Load() {
		return ErrClosed
	}
	return fmt.Errorf("%w: %s %s: %w", ErrCommandFailed, method, op, err)
}
