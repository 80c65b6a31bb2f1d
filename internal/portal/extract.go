package portal

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/eob_export/internal/browser"
)

// ClaimFields holds the labelled values of one EOB's payee block.
type ClaimFields map[string]string

// ServiceItem is one service line merged with its claim's fields.
type ServiceItem map[string]string

// Extractor reads records off an EOB detail screen.
type Extractor struct {
	driver browser.Driver
	layout Layout
}

func NewExtractor(driver browser.Driver, layout Layout) *Extractor {
	return &Extractor{driver: driver, layout: layout}
}

// ClaimFields reads every labelled field of the payee block.
func (x *Extractor) ClaimFields(ctx context.Context) (ClaimFields, error) {
	block, err := findRequired(ctx, x.driver, x.layout.PayeeBlock, "payee block")
	if err != nil {
		return nil, err
	}
	fields, err := block.FindAll(ctx, x.layout.PayeeField)
	if err != nil {
		return nil, newError(CodeDriverFailure, "read payee fields", err)
	}

	claim := make(ClaimFields, len(fields))
	for _, f := range fields {
		label, _, err := f.Attribute(ctx, x.layout.PayeeLabelAttr)
		if err != nil {
			return nil, newError(CodeDriverFailure, "read payee label", err)
		}
		text, err := f.Text(ctx)
		if err != nil {
			return nil, newError(CodeDriverFailure, "read payee value", err)
		}
		claim[label] = text
	}
	return claim, nil
}

// ServiceItems returns one item per visible, non-aggregate service line, in
// document order.
func (x *Extractor) ServiceItems(ctx context.Context) ([]ServiceItem, error) {
	claim, err := x.ClaimFields(ctx)
	if err != nil {
		return nil, err
	}

	table, err := findRequired(ctx, x.driver, x.layout.ServiceTable, "service line table")
	if err != nil {
		return nil, err
	}
	headers, err := texts(ctx, table, x.layout.ServiceHeader)
	if err != nil {
		return nil, newError(CodeDriverFailure, "read service headers", err)
	}
	rows, err := table.FindAll(ctx, x.layout.ServiceRow)
	if err != nil {
		return nil, newError(CodeDriverFailure, "read service rows", err)
	}

	items := make([]ServiceItem, 0, len(rows))
	for i, row := range rows {
		visible, err := row.Visible(ctx)
		if err != nil {
			return nil, newError(CodeDriverFailure, "read row visibility", err)
		}
		if !visible {
			slog.Debug("skipping hidden service row", "row", i)
			continue
		}
		cells, err := row.FindAll(ctx, x.layout.ServiceCell)
		if err != nil {
			return nil, newError(CodeDriverFailure, "read row cells", err)
		}
		aggregate, err := x.isAggregate(ctx, cells)
		if err != nil {
			return nil, newError(CodeDriverFailure, "read cell span", err)
		}
		if aggregate {
			slog.Debug("skipping aggregate service row", "row", i)
			continue
		}
		values := make([]string, 0, len(cells))
		for _, c := range cells {
			v, err := c.Text(ctx)
			if err != nil {
				return nil, newError(CodeDriverFailure, "read cell text", err)
			}
			values = append(values, v)
		}
		if len(values) != len(headers) {
			slog.Debug("service row shape mismatch, truncating", "row", i, "headers", len(headers), "cells", len(values))
		}
		items = append(items, MergeRow(headers, values, claim))
	}
	return items, nil
}

// MergeRow zips headers with values positionally and overlays claim.
//
// Zipping stops at the shorter of the two slices: trailing headers without a
// cell and trailing cells without a header are dropped. Claim fields are
// applied last, so a claim label always wins over a service column with the
// same name.
func MergeRow(headers, values []string, claim ClaimFields) ServiceItem {
	n := min(len(headers), len(values))
	item := make(ServiceItem, n+len(claim))
	for i := 0; i < n; i++ {
		item[headers[i]] = values[i]
	}
	for k, v := range claim {
		item[k] = v
	}
	return item
}

// isAggregate reports whether any cell spans more than one column, which marks
// a totals row.
func (x *Extractor) isAggregate(ctx context.Context, cells []browser.Element) (bool, error) {
	for _, c := range cells {
		span, ok, err := c.Attribute(ctx, x.layout.AggregateMarker)
		if err != nil {
			return false, err
		}
		if ok && span != "1" {
			return true, nil
		}
	}
	return false, nil
}

func texts(ctx context.Context, parent browser.Element, loc browser.Locator) ([]string, error) {
	elems, err := parent.FindAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(elems))
	for _, el := range elems {
		t, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
