package catalog

import (
	"encoding/json"
	"strings"
	"time"

	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/validation"
)

const dateLayout = "2006-01-02"

// CategoryRef and BrandRef are the nested id objects product writes use.
type CategoryRef struct {
	CategoryID int64 `json:"categoryId" validate:"gt=0"`
}

type BrandRef struct {
	BrandID int64 `json:"brandId" validate:"gt=0"`
}

// ProductInput is the body of product create and update. Images are sent to
// the backend as one comma-joined string.
type ProductInput struct {
	ProductID   int64       `json:"productId,omitempty"`
	ProductName string      `json:"productName" validate:"required,notblank"`
	Description string      `json:"description" validate:"required,notblank"`
	Price       int64       `json:"price" validate:"gt=0"`
	Status      string      `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE PRE_ORDER NEAR_OUT_OF_STOCKS"`
	Image       []string    `json:"-"`
	Category    CategoryRef `json:"category"`
	Brand       BrandRef    `json:"brand"`
}

func (r *ProductInput) Normalize() {
	r.ProductName = strings.TrimSpace(r.ProductName)
	r.Description = strings.TrimSpace(r.Description)
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	r.Image = compact(r.Image)
}

func (r *ProductInput) Validate() error {
	return validation.Validate(r)
}

// productWire is what the backend receives.
type productWire struct {
	ProductID   int64       `json:"productId,omitempty"`
	ProductName string      `json:"productName"`
	Description string      `json:"description"`
	Price       int64       `json:"price"`
	Status      string      `json:"status"`
	Image       string      `json:"image"`
	Category    CategoryRef `json:"category"`
	Brand       BrandRef    `json:"brand"`
}

func (r *ProductInput) wire() productWire {
	return productWire{
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Description: r.Description,
		Price:       r.Price,
		Status:      r.Status,
		Image:       ImageList(r.Image).Joined(),
		Category:    r.Category,
		Brand:       r.Brand,
	}
}

// productInputJSON lets operators post images as an array.
type productInputJSON struct {
	ProductID   int64       `json:"productId,omitempty"`
	ProductName string      `json:"productName"`
	Description string      `json:"description"`
	Price       int64       `json:"price"`
	Status      string      `json:"status"`
	Image       ImageList   `json:"image"`
	Category    CategoryRef `json:"category"`
	Brand       BrandRef    `json:"brand"`
}

func (r *ProductInput) UnmarshalJSON(data []byte) error {
	var in productInputJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = ProductInput{
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		Description: in.Description,
		Price:       in.Price,
		Status:      in.Status,
		Image:       in.Image,
		Category:    in.Category,
		Brand:       in.Brand,
	}
	return nil
}

type BrandInput struct {
	BrandID   int64  `json:"brandId,omitempty"`
	BrandName string `json:"brandName" validate:"required,notblank"`
	Image     string `json:"image,omitempty" validate:"omitempty,url"`
}

func (r *BrandInput) Normalize() {
	r.BrandName = strings.TrimSpace(r.BrandName)
	r.Image = strings.TrimSpace(r.Image)
}

func (r *BrandInput) Validate() error {
	return validation.Validate(r)
}

type CategoryInput struct {
	CategoryID   int64  `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName" validate:"required,notblank"`
}

func (r *CategoryInput) Normalize() {
	r.CategoryName = strings.TrimSpace(r.CategoryName)
}

func (r *CategoryInput) Validate() error {
	return validation.Validate(r)
}

// BlogInput carries the author id, filled from the session when omitted.
type BlogInput struct {
	BlogID    int64   `json:"blogId,omitempty"`
	Title     string  `json:"title" validate:"required,notblank"`
	Content   string  `json:"content"`
	Image     string  `json:"image,omitempty"`
	ProductID []int64 `json:"productId" validate:"required,min=1,dive,gt=0"`
	UserID    int64   `json:"userId,omitempty"`
}

func (r *BlogInput) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Image = strings.TrimSpace(r.Image)
}

func (r *BlogInput) Validate() error {
	return validation.Validate(r)
}

// VoucherInput takes calendar dates (YYYY-MM-DD); the backend receives them
// expanded to the start and end of day in UTC.
type VoucherInput struct {
	VoucherID      int64  `json:"voucherId,omitempty"`
	VoucherCode    string `json:"voucherCode" validate:"required,notblank"`
	VoucherName    string `json:"voucherName" validate:"required,notblank"`
	Quantity       int64  `json:"quantity" validate:"gte=1"`
	QuantityUse    int64  `json:"quantityUse" validate:"gte=1"`
	Discount       int64  `json:"discount" validate:"gte=0"`
	MinOrderAmount int64  `json:"minOrderAmount" validate:"gte=0"`
	StartDate      string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Status         string `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}

func (r *VoucherInput) Normalize() {
	r.VoucherCode = strings.TrimSpace(r.VoucherCode)
	r.VoucherName = strings.TrimSpace(r.VoucherName)
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	r.StartDate = datePart(r.StartDate)
	r.EndDate = datePart(r.EndDate)
}

func (r *VoucherInput) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	start, _ := time.Parse(dateLayout, r.StartDate)
	end, _ := time.Parse(dateLayout, r.EndDate)
	if end.Before(start) {
		return validationError("endDate must not be before startDate", "endDate")
	}
	return nil
}

func (r *VoucherInput) wire() VoucherInput {
	out := *r
	out.StartDate = r.StartDate + "T00:00:00.000Z"
	out.EndDate = r.EndDate + "T23:59:59.999Z"
	return out
}

// datePart accepts "2024-06-01" or a full timestamp and keeps the date.
func datePart(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) && s[len(dateLayout)] == 'T' {
		return s[:len(dateLayout)]
	}
	return s
}

type StockImportInput struct {
	Quantity   int64 `json:"quantity" validate:"gte=0"`
	ProductID  int64 `json:"productId" validate:"gt=0"`
	SupplierID int64 `json:"supplierId" validate:"gt=0"`
}

func (r *StockImportInput) Validate() error {
	return validation.Validate(r)
}

// OrderCriteria narrows the order list server-side. From and To are
// calendar dates and must be given together.
type OrderCriteria struct {
	Status string `json:"status" validate:"omitempty,oneof=PENDING PRE_ORDER CONFIRMED COMPLETED CANCELLED"`
	From   string `json:"from" validate:"required_with=To,omitempty,datetime=2006-01-02"`
	To     string `json:"to" validate:"required_with=From,omitempty,datetime=2006-01-02"`
}

func (c *OrderCriteria) Normalize() {
	c.Status = strings.ToUpper(strings.TrimSpace(c.Status))
	c.From = datePart(c.From)
	c.To = datePart(c.To)
}

func (c *OrderCriteria) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.From != "" && c.To != "" && c.To < c.From {
		return validationError("to must not be before from", "to")
	}
	return nil
}

// Empty reports whether no server-side filter is set.
func (c OrderCriteria) Empty() bool {
	return c.Status == "" && c.From == "" && c.To == ""
}

func validationError(msg, field string) error {
	return dErrors.Invalid(msg, map[string][]string{field: {msg}})
}
