package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const replayIndex = "index.html"

var errStaleElement = errors.New("browser: stale element")

// ReplayDriver serves a fixed set of saved HTML pages. Anchors and submit
// buttons navigate between pages, and visibility is derived from the hidden
// attribute and inline display/visibility styles.
type ReplayDriver struct {
	pages   map[string]string
	history []*replayPage
}

type replayPage struct {
	url *url.URL
	doc *goquery.Document
}

// NewReplayDriver builds a driver over pages keyed by their relative path,
// e.g. "claims.html" or "eob/1001.html".
func NewReplayDriver(pages map[string]string) *ReplayDriver {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[strings.TrimPrefix(path.Clean("/"+k), "/")] = v
	}
	return &ReplayDriver{pages: cp}
}

// LoadReplayDir reads every *.html file below dir into a ReplayDriver.
func LoadReplayDir(dir string) (*ReplayDriver, error) {
	pages := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		pages[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("browser: load replay dir %s: %w", dir, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("browser: no html pages in replay dir %s", dir)
	}
	keys := make([]string, 0, len(pages))
	for k := range pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slog.Info("replay pages loaded", "dir", dir, "count", len(pages), "pages", keys)
	return NewReplayDriver(pages), nil
}

func (d *ReplayDriver) current() (*replayPage, error) {
	if len(d.history) == 0 {
		return nil, errors.New("browser: no page loaded")
	}
	return d.history[len(d.history)-1], nil
}

func (d *ReplayDriver) Navigate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", rawURL, err)
	}
	return d.open(ctx, u)
}

func (d *ReplayDriver) open(ctx context.Context, u *url.URL) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if key == "" {
		key = replayIndex
	}
	html, ok := d.pages[key]
	if !ok {
		return fmt.Errorf("browser: navigate %s: no replay page %q", u, key)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("browser: parse replay page %q: %w", key, err)
	}
	resolved := *u
	resolved.Path = "/" + key
	d.history = append(d.history, &replayPage{url: &resolved, doc: doc})
	slog.Debug("replay navigate", "page", key, "depth", len(d.history))
	return nil
}

func (d *ReplayDriver) Find(ctx context.Context, loc Locator) (Element, error) {
	elems, err := d.FindAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, loc)
	}
	return elems[0], nil
}

func (d *ReplayDriver) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	page, err := d.current()
	if err != nil {
		return nil, err
	}
	return d.query(page, page.doc.Selection, loc)
}

func (d *ReplayDriver) HoverClick(ctx context.Context, hover, target Element) error {
	h, err := d.own(hover)
	if err != nil {
		return err
	}
	t, err := d.own(target)
	if err != nil {
		return err
	}
	if ok, _ := h.Visible(ctx); !ok {
		return fmt.Errorf("%w: hover target is not visible", ErrClickIntercepted)
	}
	if isDisabled(t.sel) {
		return fmt.Errorf("%w: <%s> is disabled", ErrClickIntercepted, goquery.NodeName(t.sel))
	}
	return d.activate(ctx, t)
}

func (d *ReplayDriver) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(d.history) < 2 {
		return errors.New("browser: back: no previous page")
	}
	d.history = d.history[:len(d.history)-1]
	return nil
}

func (d *ReplayDriver) Close() error {
	d.history = nil
	return nil
}

func (d *ReplayDriver) own(el Element) (*replayElement, error) {
	re, ok := el.(*replayElement)
	if !ok || re.d != d {
		return nil, fmt.Errorf("browser: element %T does not belong to this driver", el)
	}
	if err := re.check(); err != nil {
		return nil, err
	}
	return re, nil
}

func (d *ReplayDriver) query(page *replayPage, from *goquery.Selection, loc Locator) ([]Element, error) {
	sel, err := cssSelector(loc)
	if err != nil {
		return nil, err
	}
	want := strings.Join(strings.Fields(loc.Value), " ")

	var elems []Element
	from.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if loc.By == ByLinkText && normalizedText(s) != want {
			return
		}
		elems = append(elems, &replayElement{d: d, page: page, sel: s})
	})
	return elems, nil
}

// activate follows what a click on el would trigger: the nearest anchor's href,
// or the enclosing form's action for submit controls.
func (d *ReplayDriver) activate(ctx context.Context, el *replayElement) error {
	base := el.page.url
	if a := el.sel.Closest("a[href]"); a.Length() > 0 {
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil
		}
		return d.follow(ctx, base, href)
	}
	if isSubmit(el.sel) {
		form := el.sel.Closest("form")
		if form.Length() == 0 {
			return nil
		}
		action, _ := form.Attr("action")
		return d.follow(ctx, base, action)
	}
	return nil
}

func (d *ReplayDriver) follow(ctx context.Context, base *url.URL, ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("browser: bad link %q: %w", ref, err)
	}
	return d.open(ctx, base.ResolveReference(u))
}

type replayElement struct {
	d    *ReplayDriver
	page *replayPage
	sel  *goquery.Selection
}

func (e *replayElement) check() error {
	page, err := e.d.current()
	if err != nil {
		return err
	}
	if page != e.page {
		return fmt.Errorf("%w: <%s> belongs to %s", errStaleElement, goquery.NodeName(e.sel), e.page.url.Path)
	}
	return nil
}

func (e *replayElement) Text(ctx context.Context) (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return normalizedText(e.sel), nil
}

func (e *replayElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := e.check(); err != nil {
		return "", false, err
	}
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *replayElement) Visible(ctx context.Context) (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	if goquery.NodeName(e.sel) == "input" && strings.EqualFold(e.sel.AttrOr("type", ""), "hidden") {
		return false, nil
	}
	if isHidden(e.sel) {
		return false, nil
	}
	hidden := false
	e.sel.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		hidden = isHidden(p) || goquery.NodeName(p) == "head"
		return !hidden
	})
	return !hidden, nil
}

func (e *replayElement) Actionable(ctx context.Context) (bool, error) {
	visible, err := e.Visible(ctx)
	if err != nil || !visible {
		return false, err
	}
	return !isDisabled(e.sel), nil
}

func (e *replayElement) Click(ctx context.Context) error {
	ok, err := e.Actionable(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: <%s>", ErrClickIntercepted, goquery.NodeName(e.sel))
	}
	return e.d.activate(ctx, e)
}

func (e *replayElement) SendKeys(ctx context.Context, keys string) error {
	if err := e.check(); err != nil {
		return err
	}
	e.sel.SetAttr("value", e.sel.AttrOr("value", "")+keys)
	return nil
}

func (e *replayElement) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.d.query(e.page, e.sel, loc)
}

func normalizedText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func isHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style := strings.ToLower(strings.Join(strings.Fields(s.AttrOr("style", "")), ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func isDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	return s.HasClass("disabled") || s.AttrOr("aria-disabled", "") == "true"
}

func isSubmit(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "button":
		t := strings.ToLower(s.AttrOr("type", "submit"))
		return t == "submit"
	case "input":
		t := strings.ToLower(s.AttrOr("type", ""))
		return t == "submit" || t == "image"
	}
	return false
}
