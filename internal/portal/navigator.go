package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/eob_export/internal/browser"
	"github.com/dgnsrekt/eob_export/internal/poll"
)

// Options configures a Navigator. It is copied on construction.
type Options struct {
	PortalURL    string
	Username     string
	Password     string
	PageTimeout  time.Duration
	PollInterval time.Duration
	Layout       Layout
}

// Navigator drives the portal from the login page through every claims page.
// It owns the browser session and must not be used concurrently.
type Navigator struct {
	driver    browser.Driver
	opts      Options
	detector  *Detector
	extractor *Extractor
}

func NewNavigator(driver browser.Driver, opts Options) *Navigator {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = poll.DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = poll.DefaultInterval
	}
	return &Navigator{
		driver:    driver,
		opts:      opts,
		detector:  NewDetector(driver, opts.Layout),
		extractor: NewExtractor(driver, opts.Layout),
	}
}

// Detector exposes the page-state checks bound to this session.
func (n *Navigator) Detector() *Detector { return n.detector }

// Login opens the portal, submits the credentials and waits for the main page.
func (n *Navigator) Login(ctx context.Context) error {
	l := n.opts.Layout
	slog.Info("portal login", "url", n.opts.PortalURL, "user", n.opts.Username)
	if err := n.driver.Navigate(ctx, n.opts.PortalURL); err != nil {
		return newError(CodeDriverFailure, "open portal", err)
	}

	user, err := findRequired(ctx, n.driver, l.UsernameField, "username field")
	if err != nil {
		return err
	}
	if err := user.SendKeys(ctx, n.opts.Username); err != nil {
		return newError(CodeDriverFailure, "type username", err)
	}
	pass, err := findRequired(ctx, n.driver, l.PasswordField, "password field")
	if err != nil {
		return err
	}
	if err := pass.SendKeys(ctx, n.opts.Password); err != nil {
		return newError(CodeDriverFailure, "type password", err)
	}
	submit, err := findRequired(ctx, n.driver, l.SubmitButton, "submit button")
	if err != nil {
		return err
	}
	if err := submit.Click(ctx); err != nil {
		return newError(CodeDriverFailure, "submit login", err)
	}
	return n.waitFor(ctx, MainPage)
}

// OpenClaimsList hovers the claims menu, clicks the revealed claims link and
// waits for the list to render.
func (n *Navigator) OpenClaimsList(ctx context.Context) error {
	l := n.opts.Layout
	menu, err := findRequired(ctx, n.driver, l.ClaimsMenu, "claims menu")
	if err != nil {
		return err
	}
	link, err := findRequired(ctx, n.driver, l.ClaimsMenuLink, "claims menu link")
	if err != nil {
		return err
	}
	if err := n.driver.HoverClick(ctx, menu, link); err != nil {
		return newError(CodeDriverFailure, "open claims list", err)
	}
	return n.waitFor(ctx, ClaimsList)
}

// VisibleEobLinks returns the detail links of the current claims page that are
// shown, skipping ones inside collapsed groups.
func (n *Navigator) VisibleEobLinks(ctx context.Context) ([]browser.Element, error) {
	links, err := n.driver.FindAll(ctx, n.opts.Layout.EobLink)
	if err != nil {
		return nil, newError(CodeDriverFailure, "list eob links", err)
	}
	visible := make([]browser.Element, 0, len(links))
	for _, link := range links {
		ok, err := link.Visible(ctx)
		if err != nil {
			return nil, newError(CodeDriverFailure, "read eob link visibility", err)
		}
		if ok {
			visible = append(visible, link)
		}
	}
	return visible, nil
}

// VisitDetail opens the index-th visible detail link, extracts its service
// lines and returns to the claims list.
func (n *Navigator) VisitDetail(ctx context.Context, index int) ([]ServiceItem, error) {
	links, err := n.VisibleEobLinks(ctx)
	if err != nil {
		return nil, err
	}
	if index >= len(links) {
		return nil, newError(CodeElementMissing, fmt.Sprintf("eob link %d not found (%d visible)", index, len(links)), nil)
	}
	if err := links[index].Click(ctx); err != nil {
		return nil, newError(CodeDriverFailure, fmt.Sprintf("open eob link %d", index), err)
	}
	if err := n.waitFor(ctx, EobDetail); err != nil {
		return nil, err
	}

	items, err := n.extractor.ServiceItems(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("eob detail extracted", "link", index, "items", len(items))

	if err := n.driver.Back(ctx); err != nil {
		return nil, newError(CodeDriverFailure, "return to claims list", err)
	}
	if err := n.waitFor(ctx, ClaimsList); err != nil {
		return nil, err
	}
	return items, nil
}

// NextPage advances to the next claims page. It reports false when there is no
// next-page control, or the control cannot be clicked; the portal offers no
// other end-of-list signal.
func (n *Navigator) NextPage(ctx context.Context) (bool, error) {
	next, err := n.driver.Find(ctx, n.opts.Layout.NextPage)
	if errors.Is(err, browser.ErrNoSuchElement) {
		slog.Info("no next page control, pagination done")
		return false, nil
	}
	if err != nil {
		return false, newError(CodeDriverFailure, "find next page control", err)
	}

	ok, err := next.Actionable(ctx)
	if err != nil {
		return false, newError(CodeDriverFailure, "inspect next page control", err)
	}
	if !ok {
		slog.Info("next page control not actionable, pagination done")
		return false, nil
	}
	if err := next.Click(ctx); err != nil {
		if errors.Is(err, browser.ErrClickIntercepted) {
			slog.Info("next page click intercepted, pagination done", "error", err)
			return false, nil
		}
		return false, newError(CodeDriverFailure, "click next page", err)
	}
	if err := n.waitFor(ctx, ClaimsList); err != nil {
		return false, err
	}
	return true, nil
}

// Items returns a fresh single-pass cursor over every service line reachable
// from the main page. Login must have succeeded.
func (n *Navigator) Items() *ServiceItems {
	return &ServiceItems{nav: n}
}

func (n *Navigator) waitFor(ctx context.Context, state PageState) error {
	err := poll.Until(ctx, func(ctx context.Context) (bool, error) {
		return n.detector.Is(ctx, state)
	},
		poll.WithTimeout(n.opts.PageTimeout),
		poll.WithInterval(n.opts.PollInterval),
		poll.WithDescription(state.String()),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, poll.ErrTimeout) {
		current := Unknown
		if ctx.Err() == nil {
			current, _ = n.detector.Detect(ctx)
		}
		slog.Error("page did not load", "want", state, "current", current, "timeout", n.opts.PageTimeout)
		return newError(CodeNavigationTimeout, fmt.Sprintf("%s not reached within %v (page shows %s)", state, n.opts.PageTimeout, current), err)
	}
	if ctx.Err() != nil {
		return err
	}
	return newError(CodeDriverFailure, "wait for "+state.String(), err)
}

// findRequired looks up an element whose absence means the page is not what
// the navigator expects.
func findRequired(ctx context.Context, d browser.Driver, loc browser.Locator, what string) (browser.Element, error) {
	el, err := d.Find(ctx, loc)
	if errors.Is(err, browser.ErrNoSuchElement) {
		return nil, newError(CodeElementMissing, fmt.Sprintf("%s not found (%s)", what, loc), err)
	}
	if err != nil {
		return nil, newError(CodeDriverFailure, "find "+what, err)
	}
	return el, nil
}
