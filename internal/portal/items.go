package portal

import (
	"context"
	"log/slog"
)

type cursorPhase int

const (
	phaseStart cursorPhase = iota
	phasePage
	phaseDone
)

// Stats counts what a cursor has walked so far.
type Stats struct {
	Pages  int `json:"pages"`
	Claims int `json:"claims"`
	Items  int `json:"items"`
}

// ServiceItems walks every visible EOB link on every claims page and yields
// their service lines in order. Advancing it drives the browser session, so a
// cursor is single-pass and must have exactly one consumer.
//
//	items := nav.Items()
//	for items.Next(ctx) {
//		use(items.Item())
//	}
//	if err := items.Err(); err != nil { ... }
type ServiceItems struct {
	nav   *Navigator
	phase cursorPhase

	links   int // visible links on the current page
	next    int // index of the next link to visit
	pending []ServiceItem
	item    ServiceItem
	err     error
	stats   Stats
}

// Next advances to the next item. It returns false at the end of the claims
// list or on the first error, after which Err reports the cause.
func (it *ServiceItems) Next(ctx context.Context) bool {
	for {
		if len(it.pending) > 0 {
			it.item, it.pending = it.pending[0], it.pending[1:]
			it.stats.Items++
			return true
		}
		it.item = nil

		switch it.phase {
		case phaseStart:
			if err := it.nav.OpenClaimsList(ctx); err != nil {
				return it.fail(err)
			}
			if err := it.enterPage(ctx); err != nil {
				return it.fail(err)
			}
		case phasePage:
			if it.next < it.links {
				items, err := it.nav.VisitDetail(ctx, it.next)
				if err != nil {
					return it.fail(err)
				}
				it.next++
				it.stats.Claims++
				it.pending = items
				continue
			}
			more, err := it.nav.NextPage(ctx)
			if err != nil {
				return it.fail(err)
			}
			if !more {
				it.phase = phaseDone
				slog.Info("claims list exhausted", "pages", it.stats.Pages, "claims", it.stats.Claims, "items", it.stats.Items)
				return false
			}
			if err := it.enterPage(ctx); err != nil {
				return it.fail(err)
			}
		default:
			return false
		}
	}
}

// Item returns the current item. It is only valid after Next returned true.
func (it *ServiceItems) Item() ServiceItem { return it.item }

// Err returns the error that stopped iteration, if any.
func (it *ServiceItems) Err() error { return it.err }

// Stats reports progress so far.
func (it *ServiceItems) Stats() Stats { return it.stats }

// Collect drains the cursor into memory.
func (it *ServiceItems) Collect(ctx context.Context) ([]ServiceItem, error) {
	var out []ServiceItem
	for it.Next(ctx) {
		out = append(out, it.Item())
	}
	return out, it.Err()
}

func (it *ServiceItems) enterPage(ctx context.Context) error {
	links, err := it.nav.VisibleEobLinks(ctx)
	if err != nil {
		return err
	}
	it.phase = phasePage
	it.links = len(links)
	it.next = 0
	it.stats.Pages++
	slog.Info("claims page loaded", "page", it.stats.Pages, "eob_links", it.links)
	return nil
}

func (it *ServiceItems) fail(err error) bool {
	it.err = err
	it.phase = phaseDone
	it.pending = nil
	it.item = nil
	return false
}
