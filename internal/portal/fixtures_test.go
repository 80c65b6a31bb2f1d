package portal

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dgnsrekt/eob_export/internal/browser"
)

const testPortalURL = "https://portal.test/"

type fixtureRow struct {
	cells   []string
	hidden  bool
	colspan string // set on the first cell when non-empty
}

type fixtureClaim struct {
	fields  [][2]string
	headers []string
	rows    []fixtureRow
}

type fixturePage struct {
	claims       []fixtureClaim
	hiddenClaims []fixtureClaim // rendered inside a collapsed group
	next         string         // "", "enabled" or "disabled"
}

// buildPortal renders a login page, a main page, and one claims page plus its
// detail pages per entry of pages.
func buildPortal(pages []fixturePage) map[string]string {
	out := map[string]string{
		"index.html": `<html><body>
<form action="main.html" method="post">
  <input id="USERSXUSERNAME" name="user">
  <input id="USERSXPASSWORD" name="pass" type="password">
  <button id="SubmitButton" type="submit">Sign in</button>
</form></body></html>`,
		"main.html": `<html><body>
<div id="overviewMemberInfo">Member overview</div>
<ul><li id="claim_and_benefits">Claims &amp; Benefits
  <ul style="display: none"><li><a id="claims" href="claims/1.html">Claims</a></li></ul>
</li></ul></body></html>`,
	}

	for p, page := range pages {
		var b strings.Builder
		b.WriteString("<html><body><h1>Claims</h1><table class=\"claims\"><tbody>\n")
		for c, claim := range page.claims {
			key := fmt.Sprintf("%d-%d", p+1, c+1)
			fmt.Fprintf(&b, "<tr><td>%s</td><td><a id=\"eobViewLink\" href=\"../eob/%s.html\">View EOB</a></td></tr>\n", key, key)
			out["eob/"+key+".html"] = renderDetail(claim)
		}
		b.WriteString("</tbody></table>\n")
		if len(page.hiddenClaims) > 0 {
			b.WriteString("<div class=\"group\" style=\"display:none\">\n")
			for c, claim := range page.hiddenClaims {
				key := fmt.Sprintf("%d-h%d", p+1, c+1)
				fmt.Fprintf(&b, "<a id=\"eobViewLink\" href=\"../eob/%s.html\">View EOB</a>\n", key)
				out["eob/"+key+".html"] = renderDetail(claim)
			}
			b.WriteString("</div>\n")
		}
		switch page.next {
		case "enabled":
			fmt.Fprintf(&b, "<a class=\"next_link\" href=\"%d.html\">Next</a>\n", p+2)
		case "disabled":
			b.WriteString("<a class=\"next_link disabled\" href=\"#\">Next</a>\n")
		}
		b.WriteString("</body></html>")
		out[fmt.Sprintf("claims/%d.html", p+1)] = b.String()
	}
	return out
}

func renderDetail(claim fixtureClaim) string {
	var b strings.Builder
	b.WriteString("<html><body>\n<div id=\"eobPayeeInformation\">\n")
	for _, f := range claim.fields {
		fmt.Fprintf(&b, "  <span label=\"%s\">%s</span>\n", html.EscapeString(f[0]), html.EscapeString(f[1]))
	}
	b.WriteString("</div>\n<table class=\"service-lines\"><thead><tr>")
	for _, h := range claim.headers {
		fmt.Fprintf(&b, "<th>%s</th>", html.EscapeString(h))
	}
	b.WriteString("</tr></thead><tbody>\n")
	for _, r := range claim.rows {
		if r.hidden {
			b.WriteString("<tr style=\"display:none\">")
		} else {
			b.WriteString("<tr>")
		}
		for i, cell := range r.cells {
			if i == 0 && r.colspan != "" {
				fmt.Fprintf(&b, "<td colspan=\"%s\">%s</td>", r.colspan, html.EscapeString(cell))
				continue
			}
			fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(cell))
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody></table>\n<a href=\"/contact.html\">Contact us about this EOB</a>\n</body></html>")
	return b.String()
}

// simpleClaim has three service lines, the last being a totals row.
func simpleClaim(id string) fixtureClaim {
	return fixtureClaim{
		fields:  [][2]string{{"Claim Number", id}, {"Patient", "Pat Doe"}},
		headers: []string{"Date", "Service", "Billed"},
		rows: []fixtureRow{
			{cells: []string{"01/02/2024", "Office visit", "120.00"}},
			{cells: []string{"01/02/2024", "Lab", "40.00"}},
			{cells: []string{"Total", "160.00"}, colspan: "2"},
		},
	}
}

func newTestNavigator(pages map[string]string, timeout time.Duration) (*Navigator, *browser.ReplayDriver) {
	driver := browser.NewReplayDriver(pages)
	nav := NewNavigator(driver, Options{
		PortalURL:    testPortalURL,
		Username:     "member",
		Password:     "secret",
		PageTimeout:  timeout,
		PollInterval: 10 * time.Millisecond,
		Layout:       DefaultLayout(),
	})
	return nav, driver
}
