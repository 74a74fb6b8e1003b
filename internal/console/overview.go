package console

import (
	"context"

	"golang.org/x/sync/errgroup"

	"milkadmin/internal/backend"
	"milkadmin/internal/catalog"
	"milkadmin/internal/platform/tracer"
)

// Overview is the dashboard summary.
type Overview struct {
	Products      int `json:"products"`
	Orders        int `json:"orders"`
	PendingOrders int `json:"pendingOrders"`
	Users         int `json:"users"`
	Vouchers      int `json:"vouchers"`
}

// overviewCount asks for one row; only totalElements is used.
var overviewCount = backend.PageQuery{PageNo: 0, PageSize: 1}

// LoadOverview fetches the dashboard totals concurrently. The first failure
// cancels the remaining calls and is returned.
func LoadOverview(ctx context.Context, cat Catalog, t tracer.Tracer) (ov *Overview, err error) {
	if t == nil {
		t = tracer.NewNoop()
	}
	ctx, span := t.Start(ctx, tracer.SpanOverviewFetch)
	defer func() { span.End(err) }()

	var out Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := cat.ListProducts(ctx, overviewCount)
		if err != nil {
			return err
		}
		out.Products = page.TotalElements
		return nil
	})
	g.Go(func() error {
		page, err := cat.ListOrders(ctx, overviewCount, catalog.OrderCriteria{})
		if err != nil {
			return err
		}
		out.Orders = page.TotalElements
		return nil
	})
	g.Go(func() error {
		page, err := cat.ListOrders(ctx, overviewCount, catalog.OrderCriteria{Status: catalog.OrderPending})
		if err != nil {
			return err
		}
		out.PendingOrders = page.TotalElements
		return nil
	})
	g.Go(func() error {
		page, err := cat.ListUsers(ctx, overviewCount)
		if err != nil {
			return err
		}
		out.Users = page.TotalElements
		return nil
	})
	g.Go(func() error {
		page, err := cat.ListVouchers(ctx, overviewCount)
		if err != nil {
			return err
		}
		out.Vouchers = page.TotalElements
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
