package backendtest

import (
	"fmt"
	"strings"
)

// Seeded collection sizes.
const (
	SeedProducts = 25
	SeedOrders   = 15
	SeedVouchers = 6
	SeedUsers    = 12
)

var (
	seedCategories = []string{"Sữa tươi", "Sữa bột", "Sữa chua", "Sữa đặc"}
	seedBrands     = []string{"Vinamilk", "TH True Milk", "Dutch Lady", "Nutifood"}
	seedProducts   = []string{"Sữa tươi tiệt trùng", "Sữa bột Dielac", "Sữa chua uống", "Sữa đặc Ông Thọ", "Sữa hạt óc chó"}
	productStatus  = []string{"ACTIVE", "ACTIVE", "INACTIVE", "PRE_ORDER", "NEAR_OUT_OF_STOCKS"}
	orderStatus    = []string{"PENDING", "PRE_ORDER", "CONFIRMED", "COMPLETED", "CANCELLED"}
)

func (b *Backend) seed() {
	b.accounts = make(map[int64]*account)
	b.collections = map[string]*collection{
		"categories":         {idKey: "categoryId", required: map[string]string{"categoryName": "Category Name Required"}},
		"brand":              {idKey: "brandId", required: map[string]string{"brandName": "Brand Name Required"}},
		"product":            {idKey: "productId", required: map[string]string{"productName": "Product Name Required", "description": "Description Required"}},
		"blogs":              {idKey: "blogId", required: map[string]string{"title": "Title Required"}},
		"vouchers":           {idKey: "voucherId", required: map[string]string{"voucherCode": "Voucher Code Required", "voucherName": "Voucher Name Required"}},
		"orders":             {idKey: "orderDto.orderId"},
		"users":              {idKey: "userId"},
		"reports":            {idKey: "reportId"},
		"suppliers":          {idKey: "supplierId"},
		"stock_transactions": {idKey: "stockTransactionId"},
	}

	memberHash, operatorHash, staffHash := mustHash("Member123"), mustHash(Password), mustHash("Staff1234")
	for i, name := range []string{"Nguyễn Văn An", "Trần Thị Bình", "Lê Minh Châu", "Phạm Quốc Dũng", "Hoàng Thu Hà", "Võ Thanh Hải"} {
		username := fmt.Sprintf("member%d", i+1)
		b.addAccount(name, username, username+"@milkshop.vn", fmt.Sprintf("09000000%02d", i+1), memberHash, "MEMBER")
	}
	b.addAccount("Alice Nguyen", Username, Email, "0912345678", operatorHash, "ADMIN")
	for i := len(b.accounts); i < SeedUsers; i++ {
		username := fmt.Sprintf("staff%d", i+1)
		b.addAccount(fmt.Sprintf("Staff %d", i+1), username, username+"@milkshop.vn", fmt.Sprintf("09100000%02d", i+1), staffHash, "STAFF")
	}

	for _, name := range seedCategories {
		b.collections["categories"].insert(map[string]any{"categoryName": name})
	}
	for _, name := range seedBrands {
		b.collections["brand"].insert(map[string]any{"brandName": name, "image": "https://img.milkshop.vn/brand/" + slug(name) + ".png"})
	}

	categories, brands := b.collections["categories"].rows, b.collections["brand"].rows
	for i := range SeedProducts {
		name := fmt.Sprintf("%s %d", seedProducts[i%len(seedProducts)], i+1)
		var image any = []any{fmt.Sprintf("https://img.milkshop.vn/p/%d-1.jpg", i+1), fmt.Sprintf("https://img.milkshop.vn/p/%d-2.jpg", i+1)}
		if i%2 == 1 {
			image = fmt.Sprintf("[https://img.milkshop.vn/p/%d-1.jpg,https://img.milkshop.vn/p/%d-2.jpg]", i+1, i+1)
		}
		b.collections["product"].insert(map[string]any{
			"productName":     name,
			"description":     "Sản phẩm sữa " + name,
			"price":           int64(20000 + 1000*i),
			"status":          productStatus[i%len(productStatus)],
			"image":           image,
			"category":        clone(categories[i%len(categories)]),
			"brand":           clone(brands[i%len(brands)]),
			"quantityProduct": int64(10 * (i % 7)),
		})
	}
	products := b.collections["product"].rows

	author := b.accounts[UserID].profile
	for i := range 4 {
		b.collections["blogs"].insert(map[string]any{
			"title":            fmt.Sprintf("Bí quyết chọn sữa #%d", i+1),
			"content":          "Nội dung bài viết",
			"image":            "",
			"user":             clone(author),
			"product":          []any{clone(products[i]), clone(products[i+5])},
			"createdDate":      fmt.Sprintf("2024-05-%02dT08:00:00", i+1),
			"lastModifiedDate": fmt.Sprintf("2024-05-%02dT09:00:00", i+1),
		})
	}

	for i := range SeedVouchers {
		status := "ACTIVE"
		if i%3 == 2 {
			status = "INACTIVE"
		}
		b.collections["vouchers"].insert(map[string]any{
			"voucherCode":    fmt.Sprintf("MILK%02d", i+1),
			"voucherName":    fmt.Sprintf("Giảm giá %d%%", 5*(i+1)),
			"quantity":       int64(100),
			"quantityUse":    int64(i * 3),
			"discount":       int64(5 * (i + 1)),
			"minOrderAmount": int64(100000),
			"startDate":      "2024-06-01T00:00:00.000Z",
			"endDate":        "2024-12-31T23:59:59.999Z",
			"status":         status,
		})
	}
	vouchers := b.collections["vouchers"].rows
	b.members[1] = []int64{1, 2}

	orders := b.collections["orders"]
	for i := range SeedOrders {
		id := int64(i + 1)
		product := products[i%len(products)]
		qty := int64(1 + i%3)
		price := toInt(product["price"])
		row := map[string]any{
			"orderDto": map[string]any{
				"orderId":          id,
				"orderDate":        fmt.Sprintf("2024-06-%02dT10:30:00", i+1),
				"status":           orderStatus[i%len(orderStatus)],
				"totalAmount":      price * qty,
				"afterTotalAmount": price * qty,
				"feedBack":         i%4 == 0,
			},
			"listOrderDetail": []any{map[string]any{
				"orderDetailId": id,
				"quantity":      qty,
				"unitPrice":     price,
				"totalPrice":    price * qty,
				"product": map[string]any{
					"productId":   product["productId"],
					"productName": product["productName"],
					"description": product["description"],
					"image":       "",
				},
			}},
		}
		if i%5 == 0 {
			row["voucherDto"] = clone(vouchers[0])
		}
		orders.rows = append(orders.rows, row)
		orders.next = id
	}

	for i, name := range []string{"Công ty Sữa Miền Nam", "Nông trại Mộc Châu", "Nhà phân phối Hà Nội"} {
		b.collections["suppliers"].insert(map[string]any{
			"supplierName": name,
			"contactInfo":  "Phòng kinh doanh",
			"address":      fmt.Sprintf("%d Lê Lợi, TP.HCM", 10*(i+1)),
			"email":        fmt.Sprintf("supplier%d@milkshop.vn", i+1),
			"phone":        fmt.Sprintf("02800000%02d", i+1),
		})
	}
	suppliers := b.collections["suppliers"].rows
	for i := range 8 {
		product := products[i]
		qty := int64(20 + i)
		b.collections["stock_transactions"].insert(map[string]any{
			"stockTransactionDate": fmt.Sprintf("2024-04-%02dT07:00:00", i+1),
			"quantity":             qty,
			"totalPrice":           toInt(product["price"]) * qty,
			"supplier":             clone(suppliers[i%len(suppliers)]),
			"product":              clone(product),
		})
	}

	for i := range 5 {
		acc := b.accounts[int64(1+i%3)]
		b.collections["reports"].insert(map[string]any{
			"reportType": int64(1 + i%2),
			"content":    fmt.Sprintf("Phản hồi về đơn hàng %d", i+1),
			"questioner": map[string]any{
				"userId":   acc.profile["userId"],
				"fullName": acc.profile["fullName"],
			},
		})
	}
}

func slug(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}

func mustHash(password string) string {
	hash, err := hashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}
