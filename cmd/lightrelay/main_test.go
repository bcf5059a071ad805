package main

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateEnv clears the variables that would otherwise override a test
// config file.
func isolateEnv(t *testing.T, configPath string) {
	t.Helper()
	t.Setenv("LIGHTRELAY_CONFIG", configPath)
	for _, name := range []string{"DISCORD_TOKEN", "LIGHTRELAY_DISCORD_TOKEN", "BULBS", "LIGHTRELAY_DEVICES_ADDRESSES"} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// closedAddress returns a loopback address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// TestRun_InvalidConfigPath verifies run fails when LIGHTRELAY_CONFIG names a missing file.
func TestRun_InvalidConfigPath(t *testing.T) {
	isolateEnv(t, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want loading config failure", err)
	}
}

// TestRun_NoTransport verifies validation rejects a config with no chat transport.
func TestRun_NoTransport(t *testing.T) {
	isolateEnv(t, writeConfig(t, `
chat:
  prefix: "&"
  discord:
    enabled: false
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "chat transport") {
		t.Fatalf("run() error = %v, want chat transport validation failure", err)
	}
}

// TestRun_MissingDiscordToken verifies the token is required when Discord is enabled.
func TestRun_MissingDiscordToken(t *testing.T) {
	isolateEnv(t, writeConfig(t, `
chat:
  discord:
    enabled: true
logging:
  level: error
`))

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Fatalf("run() error = %v, want missing token failure", err)
	}
}

// TestRun_DeviceAttachFailure verifies an unreachable bulb aborts startup
// after the database has been opened and migrated.
func TestRun_DeviceAttachFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	isolateEnv(t, writeConfig(t, `
chat:
  discord:
    enabled: true
    token: "test-token"
devices:
  addresses: ["`+closedAddress(t)+`"]
  connect_timeout: 2s
database:
  enabled: true
  path: "`+dbPath+`"
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "attaching devices") {
		t.Fatalf("run() error = %v, want attaching devices failure", err)
	}
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("database file not created: %v", statErr)
	}
}

// TestRun_StartupAndShutdown runs the relay against a fake bulb with the
// MQTT chat transport. Requires an MQTT broker at 127.0.0.1:1883.
func TestRun_StartupAndShutdown(t *testing.T) {
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 500*time.Millisecond)
	if err != nil {
		t.Skip("no MQTT broker at 127.0.0.1:1883")
	}
	conn.Close()

	bulb, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer bulb.Close()
	go func() {
		for {
			c, acceptErr := bulb.Accept()
			if acceptErr != nil {
				return
			}
			go func() {
				defer c.Close()
				_, _ = io.Copy(io.Discard, c)
			}()
		}
	}()

	isolateEnv(t, writeConfig(t, `
chat:
  discord:
    enabled: false
  mqtt:
    enabled: true
devices:
  addresses: ["`+bulb.Addr().String()+`"]
mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "lightrelay-test-startup"
api:
  enabled: true
  host: "127.0.0.1"
  port: `+strings.TrimPrefix(closedAddress(t), "127.0.0.1:")+`
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() error = %v, want clean shutdown", err)
	}
}
