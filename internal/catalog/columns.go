package catalog

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"milkadmin/internal/table"
)

// Data types selecting canned status options.
const (
	DataTypeProducts = "products"
	DataTypeVouchers = "vouchers"
	DataTypeOrders   = "orders"
	DataTypeBlogs    = "blogs"
)

var (
	MilkStatuses = []table.Option{
		{Label: "Active", Value: StatusActive},
		{Label: "Inactive", Value: StatusInactive},
		{Label: "PreOrder", Value: StatusPreOrder},
		{Label: "Near Out Of Stock", Value: StatusNearOutOfStocks},
	}
	VoucherStatuses = []table.Option{
		{Label: "Active", Value: StatusActive},
		{Label: "Inactive", Value: StatusInactive},
		{Label: "Expire", Value: StatusExpire},
	}
	OrderStatuses = []table.Option{
		{Label: "Pending", Value: OrderPending},
		{Label: "Pre-Order", Value: OrderPreOrder},
		{Label: "Confirmed", Value: OrderConfirmed},
		{Label: "Completed", Value: OrderCompleted},
		{Label: "Cancelled", Value: OrderCancelled},
	}
)

// statusOptions picks the status list by view data type; product statuses
// are the default.
var statusOptions = map[string][]table.Option{
	DataTypeVouchers: VoucherStatuses,
	DataTypeOrders:   OrderStatuses,
}

// TableDef is the column set and view configuration of one entity.
type TableDef[T any] struct {
	Columns []table.Column[T]
	Config  table.Config[T]
}

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders an amount in dong, e.g. "120,000VND".
func FormatPrice(amount int64) string {
	return pricePrinter.Sprintf("%d", amount) + "VND"
}

func statusLabel(dataType, value string) string {
	opts, ok := statusOptions[dataType]
	if !ok {
		opts = MilkStatuses
	}
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

func statusColumn[T any](dataType string, get func(T) string) table.Column[T] {
	return table.Column[T]{
		Key:           "status",
		Header:        "Status",
		Facet:         true,
		Accessor:      func(row T) any { return get(row) },
		Cell:          func(row T) string { return statusLabel(dataType, get(row)) },
		Options:       MilkStatuses,
		OptionsByType: statusOptions,
	}
}

func idColumn[T any](key, header string, get func(T) int64) table.Column[T] {
	return table.Column[T]{Key: key, Header: header, Sortable: true, Accessor: func(row T) any { return get(row) }}
}

func textColumn[T any](key, header string, sortable bool, get func(T) string) table.Column[T] {
	return table.Column[T]{Key: key, Header: header, Sortable: sortable, Accessor: func(row T) any { return get(row) }}
}

func facetColumn[T any](key, header string, get func(T) string) table.Column[T] {
	return table.Column[T]{Key: key, Header: header, Facet: true, Accessor: func(row T) any { return get(row) }}
}

func priceColumn[T any](key, header string, get func(T) int64) table.Column[T] {
	return table.Column[T]{
		Key: key, Header: header, Sortable: true,
		Accessor: func(row T) any { return get(row) },
		Cell:     func(row T) string { return FormatPrice(get(row)) },
	}
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

func ProductTable(pageSize int) TableDef[Product] {
	return TableDef[Product]{
		Columns: []table.Column[Product]{
			idColumn("productId", "Product ID", func(p Product) int64 { return p.ProductID }),
			statusColumn(DataTypeProducts, func(p Product) string { return p.Status }),
			textColumn("productName", "Name", true, func(p Product) string { return p.ProductName }),
			textColumn("description", "Description", false, func(p Product) string { return p.Description }),
			idColumn("quantityProduct", "Quantity", func(p Product) int64 { return p.QuantityProduct }),
			priceColumn("price", "Price", func(p Product) int64 { return p.Price }),
			facetColumn("category_categoryName", "Category", func(p Product) string {
				if p.Category == nil {
					return ""
				}
				return p.Category.CategoryName
			}),
			facetColumn("brand_brandName", "Brand", func(p Product) string {
				if p.Brand == nil {
					return ""
				}
				return p.Brand.BrandName
			}),
		},
		Config: table.Config[Product]{
			SearchKey: "productName",
			DataType:  DataTypeProducts,
			RowKey:    func(p Product) string { return key(p.ProductID) },
			PageSize:  pageSize,
		},
	}
}

func BrandTable(pageSize int) TableDef[Brand] {
	return TableDef[Brand]{
		Columns: []table.Column[Brand]{
			idColumn("brandId", "Brand ID", func(b Brand) int64 { return b.BrandID }),
			textColumn("brandName", "Name", true, func(b Brand) string { return b.BrandName }),
			textColumn("image", "Image", false, func(b Brand) string { return b.Image }),
		},
		Config: table.Config[Brand]{
			SearchKey: "brandName",
			RowKey:    func(b Brand) string { return key(b.BrandID) },
			PageSize:  pageSize,
		},
	}
}

func CategoryTable(pageSize int) TableDef[Category] {
	return TableDef[Category]{
		Columns: []table.Column[Category]{
			idColumn("categoryId", "Category ID", func(c Category) int64 { return c.CategoryID }),
			textColumn("categoryName", "Name", true, func(c Category) string { return c.CategoryName }),
		},
		Config: table.Config[Category]{
			SearchKey: "categoryName",
			RowKey:    func(c Category) string { return key(c.CategoryID) },
			PageSize:  pageSize,
		},
	}
}

func BlogTable(pageSize int) TableDef[Blog] {
	return TableDef[Blog]{
		Columns: []table.Column[Blog]{
			idColumn("blogId", "Blog ID", func(b Blog) int64 { return b.BlogID }),
			textColumn("title", "Title", true, func(b Blog) string { return b.Title }),
			facetColumn("user_fullName", "Staff", func(b Blog) string {
				if b.User == nil {
					return ""
				}
				return b.User.FullName
			}),
			{
				Key:    "product",
				Header: "Product",
				Facet:  true,
				Values: func(b Blog) []string {
					names := make([]string, 0, len(b.Product))
					for _, p := range b.Product {
						if p.ProductName != "" {
							names = append(names, p.ProductName)
						}
					}
					return names
				},
			},
			textColumn("createdDate", "Created Date", true, func(b Blog) string { return b.CreatedDate }),
			textColumn("lastModifiedDate", "Last Modified", true, func(b Blog) string { return b.LastModifiedDate }),
		},
		Config: table.Config[Blog]{
			SearchKey: "title",
			DataType:  DataTypeBlogs,
			RowKey:    func(b Blog) string { return key(b.BlogID) },
			PageSize:  pageSize,
		},
	}
}

func VoucherTable(pageSize int) TableDef[Voucher] {
	return TableDef[Voucher]{
		Columns: []table.Column[Voucher]{
			textColumn("voucherCode", "Code", true, func(v Voucher) string { return v.VoucherCode }),
			textColumn("voucherName", "Name", true, func(v Voucher) string { return v.VoucherName }),
			idColumn("quantity", "Quantity", func(v Voucher) int64 { return v.Quantity }),
			idColumn("quantityUse", "Uses", func(v Voucher) int64 { return v.QuantityUse }),
			idColumn("discount", "Discount", func(v Voucher) int64 { return v.Discount }),
			priceColumn("minOrderAmount", "Min Order", func(v Voucher) int64 { return v.MinOrderAmount }),
			textColumn("startDate", "Start", true, func(v Voucher) string { return v.StartDate }),
			textColumn("endDate", "End", true, func(v Voucher) string { return v.EndDate }),
			statusColumn(DataTypeVouchers, func(v Voucher) string { return v.Status }),
		},
		Config: table.Config[Voucher]{
			SearchKey: "voucherCode",
			DataType:  DataTypeVouchers,
			RowKey:    func(v Voucher) string { return key(v.VoucherID) },
			PageSize:  pageSize,
		},
	}
}

func OrderTable(pageSize int) TableDef[Order] {
	return TableDef[Order]{
		Columns: []table.Column[Order]{
			{
				Key: "orderId", Header: "Order ID", Sortable: true,
				Accessor: func(o Order) any { return o.OrderDto.OrderID },
				Cell:     func(o Order) string { return key(o.OrderDto.OrderID) },
			},
			textColumn("orderDate", "Date", true, func(o Order) string { return o.OrderDto.OrderDate }),
			statusColumn(DataTypeOrders, func(o Order) string { return o.OrderDto.Status }),
			priceColumn("afterTotalAmount", "Total", func(o Order) int64 { return o.OrderDto.AfterTotalAmount }),
			{
				Key: "feedBack", Header: "Feedback",
				Accessor: func(o Order) any { return o.OrderDto.FeedBack },
				Cell: func(o Order) string {
					if o.OrderDto.FeedBack {
						return "Yes"
					}
					return "No"
				},
			},
		},
		Config: table.Config[Order]{
			SearchKey: "orderId",
			DataType:  DataTypeOrders,
			RowKey:    func(o Order) string { return key(o.OrderDto.OrderID) },
			PageSize:  pageSize,
		},
	}
}

func UserTable(pageSize int) TableDef[User] {
	return TableDef[User]{
		Columns: []table.Column[User]{
			idColumn("userId", "User ID", func(u User) int64 { return u.UserID }),
			textColumn("fullName", "Full Name", true, func(u User) string { return u.FullName }),
			textColumn("email", "Email", true, func(u User) string { return u.Email }),
			textColumn("phone", "Phone", false, func(u User) string { return u.Phone }),
			idColumn("point", "Point", func(u User) int64 { return u.Point }),
			facetColumn("roleName", "Role", func(u User) string { return u.RoleName }),
		},
		Config: table.Config[User]{
			SearchKey: "fullName",
			RowKey:    func(u User) string { return key(u.UserID) },
			PageSize:  pageSize,
		},
	}
}

func ReportTable(pageSize int) TableDef[Report] {
	return TableDef[Report]{
		Columns: []table.Column[Report]{
			idColumn("reportId", "Report ID", func(r Report) int64 { return r.ReportID }),
			idColumn("reportType", "Type", func(r Report) int64 { return r.ReportType }),
			textColumn("content", "Content", false, func(r Report) string { return r.Content }),
			facetColumn("questioner_fullName", "Questioner", func(r Report) string { return r.Questioner.FullName }),
		},
		Config: table.Config[Report]{
			SearchKey: "content",
			RowKey:    func(r Report) string { return key(r.ReportID) },
			PageSize:  pageSize,
		},
	}
}

func StockTransactionTable(pageSize int) TableDef[StockTransaction] {
	return TableDef[StockTransaction]{
		Columns: []table.Column[StockTransaction]{
			idColumn("stockTransactionId", "ID", func(s StockTransaction) int64 { return s.StockTransactionID }),
			textColumn("stockTransactionDate", "Date", true, func(s StockTransaction) string { return s.StockTransactionDate }),
			idColumn("quantity", "Quantity", func(s StockTransaction) int64 { return s.Quantity }),
			priceColumn("totalPrice", "Total", func(s StockTransaction) int64 { return s.TotalPrice }),
			facetColumn("supplier_supplierName", "Supplier", func(s StockTransaction) string {
				if s.Supplier == nil {
					return ""
				}
				return s.Supplier.SupplierName
			}),
			facetColumn("product_productName", "Product", func(s StockTransaction) string {
				if s.Product == nil {
					return ""
				}
				return s.Product.ProductName
			}),
		},
		Config: table.Config[StockTransaction]{
			SearchKey: "product_productName",
			RowKey:    func(s StockTransaction) string { return key(s.StockTransactionID) },
			PageSize:  pageSize,
		},
	}
}

func SupplierTable(pageSize int) TableDef[Supplier] {
	return TableDef[Supplier]{
		Columns: []table.Column[Supplier]{
			idColumn("supplierId", "Supplier ID", func(s Supplier) int64 { return s.SupplierID }),
			textColumn("supplierName", "Name", true, func(s Supplier) string { return s.SupplierName }),
			textColumn("contactInfo", "Contact", false, func(s Supplier) string { return s.ContactInfo }),
			textColumn("address", "Address", false, func(s Supplier) string { return s.Address }),
			textColumn("email", "Email", false, func(s Supplier) string { return s.Email }),
			textColumn("phone", "Phone", false, func(s Supplier) string { return s.Phone }),
		},
		Config: table.Config[Supplier]{
			SearchKey: "supplierName",
			RowKey:    func(s Supplier) string { return key(s.SupplierID) },
			PageSize:  pageSize,
		},
	}
}
