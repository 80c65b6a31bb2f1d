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

func TestMergeRowTruncatesToShorterSide(t *testing.T) {
	all := []string{"h0", "h1", "h2", "h3"}
	vals := []string{"v0", "v1", "v2", "v3"}
	for nh := 0; nh <= len(all); nh++ {
		for nv := 0; nv <= len(vals); nv++ {
			item := MergeRow(all[:nh], vals[:nv], nil)
			n := min(nh, nv)
			if len(item) != n {
				t.Fatalf("headers=%d values=%d: len(item) = %d; want %d", nh, nv, len(item), n)
			}
			for i := 0; i < n; i++ {
				if got, want := item[all[i]], vals[i]; got != want {
					t.Fatalf("headers=%d values=%d: item[%q] = %q; want %q", nh, nv, all[i], got, want)
				}
			}
			for i := n; i < nh; i++ {
				if _, ok := item[all[i]]; ok {
					t.Fatalf("headers=%d values=%d: unmatched header %q present", nh, nv, all[i])
				}
			}
		}
	}
}

func TestMergeRowClaimOverridesRow(t *testing.T) {
	item := MergeRow(
		[]string{"Status", "Billed"},
		[]string{"Denied", "10.00"},
		ClaimFields{"Status": "Processed", "Claim Number": "C-9"},
	)
	want := ServiceItem{"Status": "Processed", "Billed": "10.00", "Claim Number": "C-9"}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Fatalf("MergeRow() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeRowDuplicateHeaderKeepsLastCell(t *testing.T) {
	item := MergeRow([]string{"Amount", "Amount"}, []string{"1", "2"}, nil)
	if got, want := item["Amount"], "2"; got != want {
		t.Fatalf("Amount = %q; want %q", got, want)
	}
}

func TestServiceItemsShapeMismatch(t *testing.T) {
	claim := fixtureClaim{
		fields:  [][2]string{{"Claim Number", "C-1"}},
		headers: []string{"Date", "Service", "Billed"},
		rows: []fixtureRow{
			{cells: []string{"01/02/2024", "Visit"}},
			{cells: []string{"01/03/2024", "Lab", "5.00", "extra"}},
		},
	}
	driver := browser.NewReplayDriver(map[string]string{"index.html": renderDetail(claim)})
	ctx := context.Background()
	if err := driver.Navigate(ctx, testPortalURL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	items, err := NewExtractor(driver, DefaultLayout()).ServiceItems(ctx)
	if err != nil {
		t.Fatalf("ServiceItems() error = %v", err)
	}
	want := []ServiceItem{
		{"Date": "01/02/2024", "Service": "Visit", "Claim Number": "C-1"},
		{"Date": "01/03/2024", "Service": "Lab", "Billed": "5.00", "Claim Number": "C-1"},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Fatalf("ServiceItems() mismatch (-want +got):\n%s", diff)
	}
}

func TestClaimFieldsReadsLabelledSpans(t *testing.T) {
	claim := fixtureClaim{
		fields: [][2]string{{"Claim Number", "C-1"}, {"Provider", "Dr. Who"}, {"Paid", "$12.00"}},
	}
	driver := browser.NewReplayDriver(map[string]string{"index.html": renderDetail(claim)})
	ctx := context.Background()
	if err := driver.Navigate(ctx, testPortalURL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	got, err := NewExtractor(driver, DefaultLayout()).ClaimFields(ctx)
	if err != nil {
		t.Fatalf("ClaimFields() error = %v", err)
	}
	want := ClaimFields{"Claim Number": "C-1", "Provider": "Dr. Who", "Paid": "$12.00"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ClaimFields() mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceItemsMissingTable(t *testing.T) {
	driver := browser.NewReplayDriver(map[string]string{
		"index.html": `<html><body><div id="eobPayeeInformation"><span label="A">1</span></div></body></html>`,
	})
	ctx := context.Background()
	if err := driver.Navigate(ctx, testPortalURL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	_, err := NewExtractor(driver, DefaultLayout()).ServiceItems(ctx)
	var coded *CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("ServiceItems() error = %v; want *CodedError", err)
	}
	if coded.Code != CodeElementMissing {
		t.Fatalf("code = %s; want %s", coded.Code, CodeElementMissing)
	}
}

func TestDetectorStates(t *testing.T) {
	pages := buildPortal([]fixturePage{{claims: []fixtureClaim{simpleClaim("C-1")}}})
	pages["collapsed.html"] = `<html><body><div style="display:none"><a id="eobViewLink" href="#">View</a></div></body></html>`

	tests := []struct {
		url  string
		want PageState
	}{
		{url: testPortalURL, want: LoggedOut},
		{url: testPortalURL + "main.html", want: MainPage},
		{url: testPortalURL + "claims/1.html", want: ClaimsList},
		{url: testPortalURL + "eob/1-1.html", want: EobDetail},
		{url: testPortalURL + "collapsed.html", want: Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			nav, driver := newTestNavigator(pages, time.Second)
			ctx := context.Background()
			if err := driver.Navigate(ctx, tt.url); err != nil {
				t.Fatalf("Navigate() error = %v", err)
			}
			for i := 0; i < 2; i++ {
				got, err := nav.Detector().Detect(ctx)
				if err != nil {
					t.Fatalf("Detect() error = %v", err)
				}
				if got != tt.want {
					t.Fatalf("Detect() #%d = %s; want %s", i, got, tt.want)
				}
			}
		})
	}
}

func TestDetectorMissingMarkerIsNotAnError(t *testing.T) {
	driver := browser.NewReplayDriver(map[string]string{"index.html": `<html><body></body></html>`})
	ctx := context.Background()
	if err := driver.Navigate(ctx, testPortalURL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	det := NewDetector(driver, DefaultLayout())
	for name, check := range map[string]func(context.Context) (bool, error){
		"main":   det.IsMainPage,
		"claims": det.IsClaimsList,
		"detail": det.IsEobDetail,
	} {
		ok, err := check(ctx)
		if err != nil {
			t.Fatalf("%s: error = %v", name, err)
		}
		if ok {
			t.Fatalf("%s: reached = true; want false", name)
		}
	}
}

func ExampleMergeRow() {
	item := MergeRow([]string{"Service", "Status"}, []string{"X-ray", "Denied"}, ClaimFields{"Status": "Processed"})
	fmt.Println(item["Service"], item["Status"])
	// Output: X-ray Processed
}
