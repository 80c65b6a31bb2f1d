package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Summary describes a finished export run.
type Summary struct {
	Pages    int
	Claims   int
	Items    int
	Columns  int
	Duration time.Duration
	Err      error
}

// Message renders the notification body for s.
func (s Summary) Message() string {
	if s.Err != nil {
		return fmt.Sprintf("EOB export failed after %s (%d claims, %d service lines so far): %v",
			s.Duration.Round(time.Second), s.Claims, s.Items, s.Err)
	}
	return fmt.Sprintf("EOB export finished in %s: %d service lines from %d claims across %d pages, %d columns",
		s.Duration.Round(time.Second), s.Items, s.Claims, s.Pages, s.Columns)
}

// SendSummary posts the run summary to endpoint.
func SendSummary(ctx context.Context, client *http.Client, endpoint string, s Summary) error {
	return Send(ctx, client, endpoint, s.Message())
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if endpoint == "" {
		return errors.New("ntfy endpoint is empty")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "eob_export")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
