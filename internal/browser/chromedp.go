package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	jsVisible = `function() {
	if (!this.isConnected) return false;
	const style = window.getComputedStyle(this);
	if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
	return !!(this.offsetWidth || this.offsetHeight || this.getClientRects().length);
}`

	jsActionable = `function() {
	if (this.disabled) return false;
	const first = this.getBoundingClientRect();
	if (first.width === 0 || first.height === 0) return false;
	this.scrollIntoView({block: 'center', inline: 'center'});
	const r = this.getBoundingClientRect();
	const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	return hit !== null && (hit === this || this.contains(hit));
}`

	jsText = `function() { return (this.innerText !== undefined ? this.innerText : this.textContent || '').trim(); }`

	jsAttribute = `function(name) {
	return {ok: this.hasAttribute(name), value: this.getAttribute(name) || ''};
}`
)

// ChromeDriver drives one Chromium tab over the DevTools protocol.
type ChromeDriver struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	opTimeout   time.Duration
}

// NewChromeDriver attaches to the browser exposing cdpURL and opens a new tab.
// opTimeout bounds every individual protocol round trip.
func NewChromeDriver(ctx context.Context, cdpURL string, opTimeout time.Duration) (*ChromeDriver, error) {
	slog.Info("connecting to chromium", "url", cdpURL)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, cdpURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	if opTimeout <= 0 {
		opTimeout = 30 * time.Second
	}
	return &ChromeDriver{allocCancel: allocCancel, ctx: tabCtx, cancel: tabCancel, opTimeout: opTimeout}, nil
}

// run executes actions on the tab, bounded by both ctx and the driver's op timeout.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, d.opTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	slog.Debug("chromedp navigate", "url", url)
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (d *ChromeDriver) Find(ctx context.Context, loc Locator) (Element, error) {
	elems, err := d.query(ctx, loc, nil)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, loc)
	}
	return elems[0], nil
}

func (d *ChromeDriver) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	return d.query(ctx, loc, nil)
}

func (d *ChromeDriver) HoverClick(ctx context.Context, hover, target Element) error {
	h, ok := hover.(*chromeElement)
	if !ok {
		return fmt.Errorf("browser: hover element %T does not belong to this driver", hover)
	}
	t, ok := target.(*chromeElement)
	if !ok {
		return fmt.Errorf("browser: target element %T does not belong to this driver", target)
	}
	err := d.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := dom.ScrollIntoViewIfNeeded().WithNodeID(h.node.NodeID).Do(ctx); err != nil {
				return err
			}
			quads, err := dom.GetContentQuads().WithNodeID(h.node.NodeID).Do(ctx)
			if err != nil {
				return err
			}
			if len(quads) == 0 {
				return fmt.Errorf("hover element has no layout")
			}
			x, y := quadCenter(quads[0])
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
		chromedp.MouseClickNode(t.node),
	)
	if err != nil {
		return fmt.Errorf("browser: hover click: %w", err)
	}
	return nil
}

func (d *ChromeDriver) Back(ctx context.Context) error {
	if err := d.run(ctx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("browser: back: %w", err)
	}
	return nil
}

// Close closes the tab and releases the allocator; the browser process itself
// is left running.
func (d *ChromeDriver) Close() error {
	d.cancel()
	d.allocCancel()
	slog.Info("chromedp driver closed")
	return nil
}

// query resolves loc against the document, or below from when set. It never
// waits for elements to appear.
func (d *ChromeDriver) query(ctx context.Context, loc Locator, from *cdp.Node) ([]Element, error) {
	sel, err := cssSelector(loc)
	if err != nil {
		return nil, err
	}
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if from != nil {
		opts = append(opts, chromedp.FromNode(from))
	}

	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("browser: query %s: %w", loc, err)
	}

	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, &chromeElement{d: d, node: n})
	}
	if loc.By != ByLinkText {
		return elems, nil
	}

	matched := elems[:0]
	for _, el := range elems {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if text == strings.TrimSpace(loc.Value) {
			matched = append(matched, el)
		}
	}
	return matched, nil
}

type chromeElement struct {
	d    *ChromeDriver
	node *cdp.Node
}

func (e *chromeElement) call(ctx context.Context, fn string, res any, args ...any) error {
	return e.d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		err = chromedp.CallFunctionOn(fn, res,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
			args...,
		).Do(ctx)
		if err != nil {
			return err
		}
		if err := runtime.ReleaseObject(obj.ObjectID).Do(ctx); err != nil {
			slog.Debug("release remote object failed", "error", err)
		}
		return nil
	}))
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.call(ctx, jsText, &text); err != nil {
		return "", fmt.Errorf("browser: text of <%s>: %w", e.node.LocalName, err)
	}
	return text, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var res struct {
		OK    bool   `json:"ok"`
		Value string `json:"value"`
	}
	if err := e.call(ctx, jsAttribute, &res, name); err != nil {
		return "", false, fmt.Errorf("browser: attribute %q of <%s>: %w", name, e.node.LocalName, err)
	}
	return res.Value, res.OK, nil
}

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	if err := e.call(ctx, jsVisible, &visible); err != nil {
		return false, fmt.Errorf("browser: visibility of <%s>: %w", e.node.LocalName, err)
	}
	return visible, nil
}

func (e *chromeElement) Actionable(ctx context.Context) (bool, error) {
	var ok bool
	if err := e.call(ctx, jsActionable, &ok); err != nil {
		return false, fmt.Errorf("browser: actionability of <%s>: %w", e.node.LocalName, err)
	}
	return ok, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	ok, err := e.Actionable(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: <%s>", ErrClickIntercepted, e.node.LocalName)
	}
	if err := e.d.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("browser: click <%s>: %w", e.node.LocalName, err)
	}
	return nil
}

func (e *chromeElement) SendKeys(ctx context.Context, keys string) error {
	err := e.d.run(ctx, chromedp.SendKeys([]cdp.NodeID{e.node.NodeID}, keys, chromedp.ByNodeID))
	if err != nil {
		return fmt.Errorf("browser: send keys to <%s>: %w", e.node.LocalName, err)
	}
	return nil
}

func (e *chromeElement) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	return e.d.query(ctx, loc, e.node)
}

// cssSelector maps a locator onto a CSS selector. Link text locators select
// every anchor; the caller filters on text.
func cssSelector(loc Locator) (string, error) {
	if strings.TrimSpace(loc.Value) == "" {
		return "", fmt.Errorf("browser: empty locator value for %s", loc.By)
	}
	switch loc.By {
	case ByID:
		return "[id=" + strconv.Quote(loc.Value) + "]", nil
	case ByClass:
		return "[class~=" + strconv.Quote(loc.Value) + "]", nil
	case ByCSS, ByTag:
		return loc.Value, nil
	case ByLinkText:
		return "a", nil
	default:
		return "", fmt.Errorf("browser: unsupported locator strategy %s", loc.By)
	}
}

func quadCenter(q dom.Quad) (float64, float64) {
	var x, y float64
	points := len(q) / 2
	for i := 0; i < points; i++ {
		x += q[2*i]
		y += q[2*i+1]
	}
	return x / float64(points), y / float64(points)
}
