package portal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgnsrekt/eob_export/internal/browser"
	"github.com/google/go-cmp/cmp"
)

// cancellingDriver runs every lookup on its own context cancelled via
// context.AfterFunc, the way ChromeDriver bounds protocol round trips.
type cancellingDriver struct {
	*browser.ReplayDriver
}

func (d cancellingDriver) Find(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	select {
	case <-runCtx.Done():
		return nil, fmt.Errorf("browser: query %s: %w", loc, runCtx.Err())
	case <-time.After(5 * time.Millisecond):
	}
	return d.ReplayDriver.Find(ctx, loc)
}

// interceptedNext replaces the next-page control with one that looks
// clickable but whose click lands on an overlay.
type interceptedNext struct {
	*browser.ReplayDriver
	next   browser.Locator
	clicks int
}

func (d *interceptedNext) Find(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	if loc == d.next {
		return &overlaidElement{clicks: &d.clicks}, nil
	}
	return d.ReplayDriver.Find(ctx, loc)
}

type overlaidElement struct {
	clicks *int
}

func (e *overlaidElement) Text(context.Context) (string, error) { return "Next", nil }
func (e *overlaidElement) Attribute(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (e *overlaidElement) Visible(context.Context) (bool, error)    { return true, nil }
func (e *overlaidElement) Actionable(context.Context) (bool, error) { return true, nil }
func (e *overlaidElement) Click(context.Context) error {
	*e.clicks++
	return fmt.Errorf("%w: <div class=\"modal-backdrop\">", browser.ErrClickIntercepted)
}
func (e *overlaidElement) SendKeys(context.Context, string) error { return nil }
func (e *overlaidElement) FindAll(context.Context, browser.Locator) ([]browser.Element, error) {
	return nil, nil
}

func navigatorFor(driver browser.Driver, timeout, interval time.Duration) *Navigator {
	return NewNavigator(driver, Options{
		PortalURL:    testPortalURL,
		Username:     "member",
		Password:     "secret",
		PageTimeout:  timeout,
		PollInterval: interval,
		Layout:       DefaultLayout(),
	})
}

func TestLoginTimeoutWithCancellingDriver(t *testing.T) {
	pages := buildPortal(nil)
	pages["main.html"] = `<html><body><p>Maintenance</p></body></html>`

	for i := 0; i < 3; i++ {
		driver := cancellingDriver{browser.NewReplayDriver(pages)}
		err := navigatorFor(driver, 300*time.Millisecond, 100*time.Millisecond).Login(context.Background())

		var coded *CodedError
		if !errors.As(err, &coded) {
			t.Fatalf("run %d: Login() error = %v; want *CodedError", i, err)
		}
		if coded.Code != CodeNavigationTimeout {
			t.Fatalf("run %d: code = %s; want %s (err = %v)", i, coded.Code, CodeNavigationTimeout, err)
		}
	}
}

func TestInterceptedNextClickEndsPagination(t *testing.T) {
	pages := buildPortal([]fixturePage{
		{claims: []fixtureClaim{simpleClaim("C-1"), simpleClaim("C-2")}, next: "enabled"},
	})
	driver := &interceptedNext{ReplayDriver: browser.NewReplayDriver(pages), next: DefaultLayout().NextPage}
	nav := navigatorFor(driver, time.Second, 10*time.Millisecond)
	ctx := context.Background()
	if err := nav.Login(ctx); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	items := nav.Items()
	got, err := items.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if driver.clicks != 1 {
		t.Fatalf("next clicks = %d; want 1", driver.clicks)
	}
	var claims []string
	for _, item := range got {
		claims = append(claims, item["Claim Number"]+"/"+item["Service"])
	}
	want := []string{"C-1/Office visit", "C-1/Lab", "C-2/Office visit", "C-2/Lab"}
	if diff := cmp.Diff(want, claims); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Stats{Pages: 1, Claims: 2, Items: 4}, items.Stats()); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	more, err := nav.NextPage(ctx)
	if err != nil || more {
		t.Fatalf("NextPage() = %v, %v; want false, nil", more, err)
	}
}
