package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/gobwas/ws"
)

// LaunchConfig holds browser launch configuration.
type LaunchConfig struct {
	CDPAddress string
	CDPPort    int
	ProfileDir string
	Headless   bool
	WindowSize string
	// ReadyTimeout bounds the wait for the DevTools endpoint.
	ReadyTimeout time.Duration
}

// Launcher manages the lifecycle of a local Chromium process with remote
// debugging enabled.
type Launcher struct {
	cfg     LaunchConfig
	cmd     *exec.Cmd
	running bool
}

// NewLauncher creates a new browser launcher with the given config.
func NewLauncher(cfg LaunchConfig) *Launcher {
	if cfg.WindowSize == "" {
		cfg.WindowSize = "1920,1080"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	return &Launcher{cfg: cfg}
}

// CDPURL returns the HTTP DevTools endpoint of the launched browser.
func (l *Launcher) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", l.cfg.CDPAddress, l.cfg.CDPPort)
}

// detectBrowser finds an available Chrome/Chromium binary.
func detectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried chromium-browser, chromium, google-chrome)")
}

// isPortInUse checks whether a TCP port is already listening.
func isPortInUse(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", address, port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Launch starts the browser process unless the CDP port is already in use.
func (l *Launcher) Launch(ctx context.Context) error {
	if isPortInUse(l.cfg.CDPAddress, l.cfg.CDPPort) {
		slog.Info("browser already running, skipping launch",
			"address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)
		return l.waitForCDP(ctx)
	}

	browserPath, err := detectBrowser()
	if err != nil {
		return err
	}
	slog.Info("detected browser", "path", browserPath)

	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", l.cfg.CDPPort),
		fmt.Sprintf("--remote-debugging-address=%s", l.cfg.CDPAddress),
		fmt.Sprintf("--user-data-dir=%s", l.cfg.ProfileDir),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--disable-breakpad",
		fmt.Sprintf("--window-size=%s", l.cfg.WindowSize),
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new")
	}
	args = append(args, "about:blank")

	l.cmd = exec.Command(browserPath, args...)
	// stdout carries the export; keep browser chatter on stderr.
	l.cmd.Stdout = os.Stderr
	l.cmd.Stderr = os.Stderr

	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	l.running = true
	slog.Info("browser process started", "pid", l.cmd.Process.Pid, "headless", l.cfg.Headless)

	if err := l.waitForCDP(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	slog.Info("CDP endpoint ready",
		"address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)

	return nil
}

// waitForCDP polls the /json/version endpoint until it responds and its
// DevTools websocket accepts a connection.
func (l *Launcher) waitForCDP(ctx context.Context) error {
	url := l.CDPURL() + "/json/version"
	deadline := time.After(l.cfg.ReadyTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("CDP did not become ready within %v at %s", l.cfg.ReadyTimeout, url)
		case <-ticker.C:
			wsURL, err := fetchDebuggerURL(ctx, client, url)
			if err != nil {
				slog.Debug("CDP version check failed", "url", url, "error", err)
				continue
			}
			if err := checkWebSocket(ctx, wsURL); err != nil {
				slog.Debug("CDP websocket check failed", "ws_url", wsURL, "error", err)
				continue
			}
			return nil
		}
	}
}

func fetchDebuggerURL(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("decode version: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("version response has no webSocketDebuggerUrl")
	}
	return version.WebSocketDebuggerURL, nil
}

func checkWebSocket(ctx context.Context, wsURL string) error {
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(dialCtx, wsURL)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Running reports whether this launcher spawned a browser process.
func (l *Launcher) Running() bool {
	return l.running
}

// Stop terminates the browser process with SIGTERM, falling back to SIGKILL.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil {
		return
	}
	slog.Info("stopping browser", "pid", l.cmd.Process.Pid)
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("browser stopped gracefully")
	case <-time.After(5 * time.Second):
		slog.Warn("browser did not exit, sending SIGKILL")
		_ = l.cmd.Process.Kill()
		<-done
	}
	l.running = false
}
