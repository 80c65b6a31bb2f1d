package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoSuchElement is returned by Find when no element matches the locator.
	ErrNoSuchElement = errors.New("browser: no such element")
	// ErrClickIntercepted is returned by Click when another element would
	// receive the click, or the target cannot be interacted with.
	ErrClickIntercepted = errors.New("browser: click intercepted")
)

// Strategy selects how a Locator value is interpreted.
type Strategy int

const (
	ByID Strategy = iota
	ByCSS
	ByLinkText
	ByTag
	ByClass
)

func (s Strategy) String() string {
	switch s {
	case ByID:
		return "id"
	case ByCSS:
		return "css"
	case ByLinkText:
		return "link text"
	case ByTag:
		return "tag"
	case ByClass:
		return "class"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Locator identifies elements on a page.
type Locator struct {
	By    Strategy
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

func ID(id string) Locator           { return Locator{By: ByID, Value: id} }
func CSS(selector string) Locator    { return Locator{By: ByCSS, Value: selector} }
func LinkText(text string) Locator   { return Locator{By: ByLinkText, Value: text} }
func Tag(name string) Locator        { return Locator{By: ByTag, Value: name} }
func Class(className string) Locator { return Locator{By: ByClass, Value: className} }

// Element is a handle to one node of the current page. Handles are only valid
// until the next navigation.
type Element interface {
	Text(ctx context.Context) (string, error)
	// Attribute reports the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
	// Actionable reports whether a click would reach this element.
	Actionable(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, keys string) error
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
}

// Driver is a single browser session, driven sequentially.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Find returns the first match or ErrNoSuchElement.
	Find(ctx context.Context, loc Locator) (Element, error)
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	// HoverClick moves the pointer onto hover and then clicks target, for
	// controls that are only revealed while their menu is hovered.
	HoverClick(ctx context.Context, hover, target Element) error
	Back(ctx context.Context) error
	Close() error
}
