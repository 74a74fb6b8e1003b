// Package catalog holds the shop entities the console manages, their backend
// endpoints, write-payload validation and the table columns each view uses.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Product statuses accepted by the backend.
const (
	StatusActive          = "ACTIVE"
	StatusInactive        = "INACTIVE"
	StatusPreOrder        = "PRE_ORDER"
	StatusNearOutOfStocks = "NEAR_OUT_OF_STOCKS"
	StatusExpire          = "EXPIRE"
)

// Order statuses.
const (
	OrderPending   = "PENDING"
	OrderPreOrder  = "PRE_ORDER"
	OrderConfirmed = "CONFIRMED"
	OrderCompleted = "COMPLETED"
	OrderCancelled = "CANCELLED"
)

type Brand struct {
	BrandID   int64  `json:"brandId"`
	BrandName string `json:"brandName"`
	Image     string `json:"image,omitempty"`
}

type Category struct {
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

// ImageList decodes either a JSON array of URLs or the legacy "[a,b]" string
// form some product rows still carry.
type ImageList []string

func (l *ImageList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var urls []string
		if err := json.Unmarshal(data, &urls); err != nil {
			return fmt.Errorf("decode image list: %w", err)
		}
		*l = compact(urls)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode image list: %w", err)
	}
	*l = ParseImageString(raw)
	return nil
}

// ParseImageString splits "[a,b]", "a,b" or "a" into URLs.
func ParseImageString(raw string) ImageList {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return ImageList{}
	}
	return compact(strings.Split(raw, ","))
}

func compact(urls []string) ImageList {
	out := make(ImageList, 0, len(urls))
	for _, u := range urls {
		u = strings.Trim(strings.TrimSpace(u), `"`)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Joined is the comma-separated form write endpoints expect.
func (l ImageList) Joined() string {
	return strings.Join(l, ",")
}

type Product struct {
	ProductID       int64     `json:"productId"`
	ProductName     string    `json:"productName"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	Status          string    `json:"status"`
	Image           ImageList `json:"image"`
	Category        *Category `json:"category,omitempty"`
	Brand           *Brand    `json:"brand,omitempty"`
	QuantityProduct int64     `json:"quantityProduct"`
}

// User is a shop account as listed by the users endpoint.
type User struct {
	UserID     int64  `json:"userId"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Point      int64  `json:"point"`
	Image      string `json:"image"`
	RoleName   string `json:"roleName"`
	FirstLogin bool   `json:"firstLogin"`
}

type Blog struct {
	BlogID           int64     `json:"blogId"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	Image            string    `json:"image"`
	User             *User     `json:"user,omitempty"`
	Product          []Product `json:"product"`
	CreatedDate      string    `json:"createdDate"`
	LastModifiedDate string    `json:"lastModifiedDate"`
}

type Voucher struct {
	VoucherID      int64  `json:"voucherId"`
	VoucherCode    string `json:"voucherCode"`
	VoucherName    string `json:"voucherName"`
	Quantity       int64  `json:"quantity"`
	QuantityUse    int64  `json:"quantityUse"`
	Discount       int64  `json:"discount"`
	MinOrderAmount int64  `json:"minOrderAmount"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Status         string `json:"status"`
}

type Gift struct {
	ProductID      int64  `json:"productId"`
	ProductName    string `json:"productName"`
	Description    string `json:"description"`
	QuantityOfGift int64  `json:"quantityOfGift"`
	Image          string `json:"image"`
}

type OrderProduct struct {
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName"`
	Description  string `json:"description"`
	Image        string `json:"image"`
	GiftResponse *Gift  `json:"giftResponse,omitempty"`
}

type OrderDetail struct {
	OrderDetailID int64        `json:"orderDetailId"`
	Quantity      int64        `json:"quantity"`
	UnitPrice     int64        `json:"unitPrice"`
	TotalPrice    int64        `json:"totalPrice"`
	Product       OrderProduct `json:"product"`
}

type OrderSummary struct {
	OrderID          int64  `json:"orderId"`
	OrderDate        string `json:"orderDate"`
	Status           string `json:"status"`
	TotalAmount      int64  `json:"totalAmount"`
	AfterTotalAmount int64  `json:"afterTotalAmount"`
	FeedBack         bool   `json:"feedBack"`
}

// Order is one row of the orders endpoints.
type Order struct {
	OrderDto        OrderSummary  `json:"orderDto"`
	VoucherDto      *Voucher      `json:"voucherDto,omitempty"`
	ListOrderDetail []OrderDetail `json:"listOrderDetail"`
}

type Questioner struct {
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
}

type Report struct {
	ReportID   int64      `json:"reportId"`
	ReportType int64      `json:"reportType"`
	Content    string     `json:"content"`
	Questioner Questioner `json:"questioner"`
}

type Supplier struct {
	SupplierID   int64  `json:"supplierId"`
	SupplierName string `json:"supplierName"`
	ContactInfo  string `json:"contactInfo"`
	Address      string `json:"address"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
}

type StockTransaction struct {
	StockTransactionID   int64     `json:"stockTransactionId"`
	StockTransactionDate string    `json:"stockTransactionDate"`
	Quantity             int64     `json:"quantity"`
	TotalPrice           int64     `json:"totalPrice"`
	Supplier             *Supplier `json:"supplier,omitempty"`
	Product              *Product  `json:"product,omitempty"`
}
