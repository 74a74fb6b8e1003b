package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"milkadmin/internal/backend"
)

// Default sort keys per list endpoint.
const (
	SortProduct          = "productId"
	SortBrand            = "brandId"
	SortCategory         = "categoryId"
	SortBlog             = "blogId"
	SortVoucher          = "voucherId"
	SortOrder            = "orderId"
	SortUser             = "userId"
	SortReport           = "reportId"
	SortStockTransaction = "stockTransactionId"
	SortSupplier         = "supplierId"
)

// Client exposes the shop's catalog endpoints with typed models. Write
// payloads are normalized and validated before anything is sent.
type Client struct {
	api     *backend.Client
	schemas *Schemas
}

func NewClient(api *backend.Client, schemas *Schemas) *Client {
	return &Client{api: api, schemas: schemas}
}

func list[T any](ctx context.Context, c *Client, endpoint, schema, defaultSort string, q backend.PageQuery) (*backend.Page[T], error) {
	if q.SortBy == "" {
		q.SortBy = defaultSort
	}
	var opts []backend.CallOption
	if c.schemas != nil {
		opts = append(opts, backend.WithResponseCheck(c.schemas.Page(schema)))
	}
	return backend.ListPage[T](ctx, c.api, endpoint, q, opts...)
}

type preparable interface {
	Validate() error
}

func prepare(in preparable) error {
	if n, ok := in.(interface{ Normalize() }); ok {
		n.Normalize()
	}
	return in.Validate()
}

func idPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return invalidID(field)
	}
	return nil
}

// Products

func (c *Client) ListProducts(ctx context.Context, q backend.PageQuery) (*backend.Page[Product], error) {
	return list[Product](ctx, c, "product", SchemaProduct, SortProduct, q)
}

func (c *Client) CreateProduct(ctx context.Context, in *ProductInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	return c.api.Post(ctx, "product", in.wire(), nil)
}

func (c *Client) UpdateProduct(ctx context.Context, in *ProductInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	if err := requireID("productId", in.ProductID); err != nil {
		return err
	}
	return c.api.Put(ctx, "product/update", in.wire(), nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, idPath("product/delete/", id), nil)
}

// Brands

func (c *Client) ListBrands(ctx context.Context, q backend.PageQuery) (*backend.Page[Brand], error) {
	return list[Brand](ctx, c, "brand", SchemaBrand, SortBrand, q)
}

func (c *Client) CreateBrand(ctx context.Context, in *BrandInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	return c.api.Post(ctx, "brand", in, nil)
}

func (c *Client) UpdateBrand(ctx context.Context, in *BrandInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	if err := requireID("brandId", in.BrandID); err != nil {
		return err
	}
	return c.api.Put(ctx, "brand/update", in, nil)
}

func (c *Client) DeleteBrand(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, idPath("brand/delete/", id), nil)
}

// Categories

func (c *Client) ListCategories(ctx context.Context, q backend.PageQuery) (*backend.Page[Category], error) {
	return list[Category](ctx, c, "categories", SchemaCategory, SortCategory, q)
}

func (c *Client) CreateCategory(ctx context.Context, in *CategoryInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	return c.api.Post(ctx, "categories", in, nil)
}

func (c *Client) UpdateCategory(ctx context.Context, in *CategoryInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	if err := requireID("categoryId", in.CategoryID); err != nil {
		return err
	}
	return c.api.Put(ctx, "categories", in, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, idPath("categories/", id), nil)
}

// Blogs

func (c *Client) ListBlogs(ctx context.Context, q backend.PageQuery) (*backend.Page[Blog], error) {
	return list[Blog](ctx, c, "blogs", SchemaBlog, SortBlog, q)
}

func (c *Client) CreateBlog(ctx context.Context, in *BlogInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	return c.api.Post(ctx, "blogs", in, nil)
}

func (c *Client) UpdateBlog(ctx context.Context, in *BlogInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	if err := requireID("blogId", in.BlogID); err != nil {
		return err
	}
	return c.api.Put(ctx, "blogs", in, nil)
}

func (c *Client) DeleteBlog(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, idPath("blogs/", id), nil)
}

// Vouchers

func (c *Client) ListVouchers(ctx context.Context, q backend.PageQuery) (*backend.Page[Voucher], error) {
	return list[Voucher](ctx, c, "vouchers", SchemaVoucher, SortVoucher, q)
}

// ManageVouchers lists vouchers with management fields (usage counts).
func (c *Client) ManageVouchers(ctx context.Context, q backend.PageQuery) (*backend.Page[Voucher], error) {
	return list[Voucher](ctx, c, "vouchers/manage", SchemaVoucher, SortVoucher, q)
}

// MemberVouchers lists the vouchers assigned to one member.
func (c *Client) MemberVouchers(ctx context.Context, userID int64) ([]Voucher, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	q := url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	var out []Voucher
	if err := c.api.Get(ctx, "vouchers/member", &out, backend.WithQuery(q)); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Voucher{}
	}
	return out, nil
}

// AssignVoucher gives voucherID to member userID.
func (c *Client) AssignVoucher(ctx context.Context, userID, voucherID int64) error {
	if err := requireID("userId", userID); err != nil {
		return err
	}
	if err := requireID("voucherId", voucherID); err != nil {
		return err
	}
	q := url.Values{
		"userId":    {strconv.FormatInt(userID, 10)},
		"voucherId": {strconv.FormatInt(voucherID, 10)},
	}
	return c.api.Post(ctx, "vouchers/member", struct{}{}, nil, backend.WithQuery(q))
}

func (c *Client) CreateVoucher(ctx context.Context, in *VoucherInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	return c.api.Post(ctx, "vouchers", in.wire(), nil)
}

func (c *Client) UpdateVoucher(ctx context.Context, in *VoucherInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	if err := requireID("voucherId", in.VoucherID); err != nil {
		return err
	}
	return c.api.Put(ctx, "vouchers", in.wire(), nil)
}

func (c *Client) DeleteVoucher(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, idPath("vouchers/", id), nil)
}

// Orders

// ListOrders uses orders/search when any criterion is set. Dates are sent
// as the start of From and the end of To.
func (c *Client) ListOrders(ctx context.Context, q backend.PageQuery, criteria OrderCriteria) (*backend.Page[Order], error) {
	if criteria.Empty() {
		return list[Order](ctx, c, "orders", SchemaOrder, SortOrder, q)
	}
	if err := prepare(&criteria); err != nil {
		return nil, err
	}
	extra := url.Values{}
	for k, vs := range q.Extra {
		extra[k] = append([]string(nil), vs...)
	}
	if criteria.Status != "" {
		extra.Set("status", criteria.Status)
	}
	if criteria.From != "" {
		extra.Set("orderDateFrom", criteria.From+"T00:00:00")
		extra.Set("orderDateTo", criteria.To+"T23:59:59")
	}
	q.Extra = extra
	return list[Order](ctx, c, "orders/search", SchemaOrder, SortOrder, q)
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	if err := requireID("orderId", id); err != nil {
		return nil, err
	}
	var opts []backend.CallOption
	if c.schemas != nil {
		opts = append(opts, backend.WithResponseCheck(c.schemas.Item(SchemaOrder)))
	}
	var out Order
	if err := c.api.Get(ctx, idPath("orders/order/", id), &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceOrder moves an order to its next status. Which status that is is
// the backend's decision.
func (c *Client) AdvanceOrder(ctx context.Context, id int64) error {
	if err := requireID("orderId", id); err != nil {
		return err
	}
	q := url.Values{"orderId": {strconv.FormatInt(id, 10)}}
	return c.api.Put(ctx, "orders", struct{}{}, nil, backend.WithQuery(q))
}

// Users, reports, suppliers and stock

func (c *Client) ListUsers(ctx context.Context, q backend.PageQuery) (*backend.Page[User], error) {
	return list[User](ctx, c, "users", SchemaUser, SortUser, q)
}

func (c *Client) ListReports(ctx context.Context, q backend.PageQuery) (*backend.Page[Report], error) {
	return list[Report](ctx, c, "reports", SchemaReport, SortReport, q)
}

func (c *Client) ListSuppliers(ctx context.Context, q backend.PageQuery) (*backend.Page[Supplier], error) {
	return list[Supplier](ctx, c, "suppliers", SchemaSupplier, SortSupplier, q)
}

func (c *Client) ListStockTransactions(ctx context.Context, q backend.PageQuery) (*backend.Page[StockTransaction], error) {
	return list[StockTransaction](ctx, c, "stock_transactions", SchemaStockTransaction, SortStockTransaction, q)
}

// ImportStock records an incoming delivery.
func (c *Client) ImportStock(ctx context.Context, in *StockImportInput) error {
	if err := prepare(in); err != nil {
		return err
	}
	return c.api.Post(ctx, "stock_transactions", in, nil)
}

func invalidID(field string) error {
	msg := fmt.Sprintf("%s must be greater than 0", field)
	return validationError(msg, field)
}
