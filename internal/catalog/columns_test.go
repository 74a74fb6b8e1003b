package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milkadmin/internal/table"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "120,000VND", FormatPrice(120000))
	assert.Equal(t, "0VND", FormatPrice(0))
	assert.Equal(t, "1,250,500VND", FormatPrice(1250500))
}

func loadView[T any](t *testing.T, def TableDef[T], rows []T) *table.View[T] {
	t.Helper()
	view, err := table.NewView(def.Columns, def.Config)
	require.NoError(t, err)
	view.SetRows(view.Refresh(), table.Page[T]{Rows: rows, TotalPages: 1, TotalElements: len(rows)})
	return view
}

func TestProductTable(t *testing.T) {
	rows := []Product{
		{ProductID: 1, ProductName: "Sữa tươi", Price: 30000, Status: StatusActive, Brand: &Brand{BrandName: "Vinamilk"}, Category: &Category{CategoryName: "Fresh"}},
		{ProductID: 2, ProductName: "Meiji", Price: 450000, Status: StatusPreOrder, Brand: &Brand{BrandName: "Meiji"}},
	}
	view := loadView(t, ProductTable(10), rows)
	snap := view.Render()

	assert.Equal(t, "30,000VND", snap.Rows[0].Cells["price"])
	assert.Equal(t, "PreOrder", snap.Rows[1].Cells["status"])

	facets := map[string][]table.Option{}
	for _, f := range snap.Facets {
		facets[f.Key] = f.Options
	}
	assert.Equal(t, MilkStatuses, facets["status"])
	assert.Equal(t, []table.Option{{Label: "Vinamilk", Value: "Vinamilk"}, {Label: "Meiji", Value: "Meiji"}}, facets["brand_brandName"])
	assert.Equal(t, []table.Option{{Label: "Fresh", Value: "Fresh"}}, facets["category_categoryName"])
}

func TestVoucherTableUsesVoucherStatuses(t *testing.T) {
	view := loadView(t, VoucherTable(10), []Voucher{{VoucherID: 3, VoucherCode: "SUMMER", Status: StatusExpire}})
	opts, ok, err := view.FacetOptions("status")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, VoucherStatuses, opts)
	assert.Equal(t, "Expire", view.Render().Rows[0].Cells["status"])
}

func TestBlogTableProductFacet(t *testing.T) {
	rows := []Blog{
		{BlogID: 1, Title: "Calcium", Product: []Product{{ProductName: "Meiji"}, {ProductName: "TH"}}, User: &User{FullName: "Alice"}},
		{BlogID: 2, Title: "Sleep", Product: []Product{{ProductName: "Similac"}}},
		{BlogID: 3, Title: "Growth", Product: []Product{{ProductName: "TH"}}},
	}
	view := loadView(t, BlogTable(10), rows)

	require.NoError(t, view.SetFacet("product", []string{"TH"}))
	var ids []string
	for _, r := range view.Render().Rows {
		ids = append(ids, r.Key)
	}
	assert.Equal(t, []string{"1", "3"}, ids)

	opts, ok, err := view.FacetOptions("user_fullName")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []table.Option{{Label: "Alice", Value: "Alice"}}, opts)
}

func TestTableDefsBuild(t *testing.T) {
	_, err := table.NewView(BrandTable(10).Columns, BrandTable(10).Config)
	assert.NoError(t, err)
	_, err = table.NewView(CategoryTable(10).Columns, CategoryTable(10).Config)
	assert.NoError(t, err)
	_, err = table.NewView(OrderTable(10).Columns, OrderTable(10).Config)
	assert.NoError(t, err)
	_, err = table.NewView(UserTable(10).Columns, UserTable(10).Config)
	assert.NoError(t, err)
	_, err = table.NewView(ReportTable(10).Columns, ReportTable(10).Config)
	assert.NoError(t, err)
	_, err = table.NewView(StockTransactionTable(10).Columns, StockTransactionTable(10).Config)
	assert.NoError(t, err)
	_, err = table.NewView(SupplierTable(10).Columns, SupplierTable(10).Config)
	assert.NoError(t, err)
}
