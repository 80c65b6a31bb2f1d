package portal

import (
	"context"
	"errors"

	"github.com/dgnsrekt/eob_export/internal/browser"
)

// PageState is the semantic screen the portal is showing.
type PageState int

const (
	Unknown PageState = iota
	LoggedOut
	MainPage
	ClaimsList
	EobDetail
)

func (s PageState) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case MainPage:
		return "main_page"
	case ClaimsList:
		return "claims_list"
	case EobDetail:
		return "eob_detail"
	default:
		return "unknown"
	}
}

// Detector inspects the current page for state-defining marker elements. Checks
// have no side effects on the session.
type Detector struct {
	driver browser.Driver
	layout Layout
}

func NewDetector(driver browser.Driver, layout Layout) *Detector {
	return &Detector{driver: driver, layout: layout}
}

func (d *Detector) IsMainPage(ctx context.Context) (bool, error) {
	return d.markerVisible(ctx, d.layout.MainPageMarker)
}

func (d *Detector) IsClaimsList(ctx context.Context) (bool, error) {
	return d.markerVisible(ctx, d.layout.ClaimsListMarker)
}

func (d *Detector) IsEobDetail(ctx context.Context) (bool, error) {
	return d.markerVisible(ctx, d.layout.EobDetailMarker)
}

// Is reports whether the page currently shows state.
func (d *Detector) Is(ctx context.Context, state PageState) (bool, error) {
	switch state {
	case LoggedOut:
		return d.markerVisible(ctx, d.layout.LoginMarker)
	case MainPage:
		return d.IsMainPage(ctx)
	case ClaimsList:
		return d.IsClaimsList(ctx)
	case EobDetail:
		return d.IsEobDetail(ctx)
	default:
		return false, nil
	}
}

// Detect returns the most specific state whose marker is visible, or Unknown.
func (d *Detector) Detect(ctx context.Context) (PageState, error) {
	for _, state := range []PageState{EobDetail, ClaimsList, MainPage, LoggedOut} {
		ok, err := d.Is(ctx, state)
		if err != nil {
			return Unknown, err
		}
		if ok {
			return state, nil
		}
	}
	return Unknown, nil
}

// markerVisible treats a missing marker as a negative result, not an error.
func (d *Detector) markerVisible(ctx context.Context, loc browser.Locator) (bool, error) {
	el, err := d.driver.Find(ctx, loc)
	if errors.Is(err, browser.ErrNoSuchElement) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return el.Visible(ctx)
}
