package portal

import "github.com/dgnsrekt/eob_export/internal/browser"

// Layout names the portal elements the navigator and extractor rely on.
type Layout struct {
	UsernameField browser.Locator
	PasswordField browser.Locator
	SubmitButton  browser.Locator

	LoginMarker      browser.Locator
	MainPageMarker   browser.Locator
	ClaimsListMarker browser.Locator
	EobDetailMarker  browser.Locator
	ClaimsMenu       browser.Locator
	ClaimsMenuLink   browser.Locator
	EobLink          browser.Locator
	NextPage         browser.Locator

	PayeeBlock      browser.Locator
	PayeeField      browser.Locator
	PayeeLabelAttr  string
	ServiceTable    browser.Locator
	ServiceHeader   browser.Locator
	ServiceRow      browser.Locator
	ServiceCell     browser.Locator
	AggregateMarker string
}

// DefaultLayout matches the member portal's markup.
func DefaultLayout() Layout {
	return Layout{
		UsernameField: browser.ID("USERSXUSERNAME"),
		PasswordField: browser.ID("USERSXPASSWORD"),
		SubmitButton:  browser.ID("SubmitButton"),

		LoginMarker:      browser.ID("USERSXUSERNAME"),
		MainPageMarker:   browser.ID("overviewMemberInfo"),
		ClaimsListMarker: browser.ID("eobViewLink"),
		EobDetailMarker:  browser.LinkText("Contact us about this EOB"),
		ClaimsMenu:       browser.ID("claim_and_benefits"),
		ClaimsMenuLink:   browser.ID("claims"),
		EobLink:          browser.ID("eobViewLink"),
		NextPage:         browser.Class("next_link"),

		PayeeBlock:      browser.ID("eobPayeeInformation"),
		PayeeField:      browser.CSS("span"),
		PayeeLabelAttr:  "label",
		ServiceTable:    browser.CSS("table.service-lines"),
		ServiceHeader:   browser.CSS("th"),
		ServiceRow:      browser.CSS("tbody>tr"),
		ServiceCell:     browser.Tag("td"),
		AggregateMarker: "colspan",
	}
}
