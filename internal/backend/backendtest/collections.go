package backendtest

import (
	"cmp"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 10

// collection is one backend table. idKey may be a dotted path.
type collection struct {
	idKey    string
	required map[string]string
	rows     []map[string]any
	next     int64
}

func (c *collection) id(row map[string]any) int64 {
	return toInt(lookup(row, c.idKey))
}

func (c *collection) index(id int64) int {
	for i, row := range c.rows {
		if c.id(row) == id {
			return i
		}
	}
	return -1
}

func (c *collection) insert(row map[string]any) int64 {
	c.next++
	row[c.idKey] = c.next
	c.rows = append(c.rows, row)
	return c.next
}

func (c *collection) missing(row map[string]any) map[string]string {
	fields := map[string]string{}
	for key, msg := range c.required {
		v := lookup(row, key)
		if s, ok := v.(string); (ok && strings.TrimSpace(s) == "") || v == nil {
			fields[key] = msg
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

type pageBody struct {
	Content       []map[string]any `json:"content"`
	PageNo        int              `json:"pageNo"`
	PageSize      int              `json:"pageSize"`
	TotalElements int              `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	Last          bool             `json:"last"`
}

// page sorts a copy of rows and slices out the requested page.
func page(rows []map[string]any, r *http.Request, defaultSort string) pageBody {
	q := r.URL.Query()
	pageNo, _ := strconv.Atoi(q.Get("pageNo"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	if pageNo < 0 {
		pageNo = 0
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	sortBy := cmp.Or(q.Get("sortBy"), defaultSort)
	desc := strings.EqualFold(q.Get("sortDir"), "desc")

	sorted := make([]map[string]any, len(rows))
	for i, row := range rows {
		sorted[i] = clone(row)
	}
	slices.SortStableFunc(sorted, func(a, b map[string]any) int {
		c := compareAny(lookupSort(a, sortBy), lookupSort(b, sortBy))
		if desc {
			return -c
		}
		return c
	})

	total := len(sorted)
	totalPages := (total + pageSize - 1) / pageSize
	start := min(pageNo*pageSize, total)
	end := min(start+pageSize, total)
	return pageBody{
		Content:       sorted[start:end],
		PageNo:        pageNo,
		PageSize:      pageSize,
		TotalElements: total,
		TotalPages:    totalPages,
		Last:          pageNo >= totalPages-1,
	}
}

func (b *Backend) handleList(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		c := b.collections[name]
		body := page(c.rows, r, c.idKey)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	}
}

func (b *Backend) handleCreate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var row map[string]any
		if err := decode(r, &row); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		c := b.collections[name]
		if fields := c.missing(row); fields != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", fields)
			return
		}
		b.expand(row)
		id := c.insert(row)
		writeJSON(w, http.StatusCreated, map[string]any{c.idKey: id})
	}
}

func (b *Backend) handleUpdate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var row map[string]any
		if err := decode(r, &row); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		c := b.collections[name]
		i := c.index(toInt(row[c.idKey]))
		if i < 0 {
			writeProblem(w, http.StatusNotFound, notFoundTitle(name), nil)
			return
		}
		if fields := c.missing(row); fields != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", fields)
			return
		}
		b.expand(row)
		for k, v := range row {
			c.rows[i][k] = v
		}
		writeJSON(w, http.StatusOK, clone(c.rows[i]))
	}
}

func (b *Backend) handleDelete(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		c := b.collections[name]
		i := c.index(id)
		if i < 0 {
			writeProblem(w, http.StatusNotFound, notFoundTitle(name), nil)
			return
		}
		c.rows = slices.Delete(c.rows, i, i+1)
		w.WriteHeader(http.StatusNoContent)
	}
}

// expand resolves id references the way the backend echoes them back on
// reads. Callers hold b.mu.
func (b *Backend) expand(row map[string]any) {
	if ids, ok := row["productId"].([]any); ok {
		products := b.collections["product"]
		linked := make([]any, 0, len(ids))
		for _, id := range ids {
			if i := products.index(toInt(id)); i >= 0 {
				linked = append(linked, clone(products.rows[i]))
			}
		}
		row["product"] = linked
		delete(row, "productId")
	}
	if id, ok := row["userId"]; ok {
		if acc, found := b.accounts[toInt(id)]; found {
			row["user"] = clone(acc.profile)
		}
		delete(row, "userId")
	}
	for field, name := range map[string]string{"category": "categories", "brand": "brand"} {
		ref, ok := row[field].(map[string]any)
		if !ok {
			continue
		}
		c := b.collections[name]
		if i := c.index(toInt(ref[c.idKey])); i >= 0 {
			row[field] = clone(c.rows[i])
		}
	}
}

func (b *Backend) handleMemberVouchers(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"userId": "userId is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	vouchers := b.collections["vouchers"]
	out := []map[string]any{}
	for _, id := range b.members[userID] {
		if i := vouchers.index(id); i >= 0 {
			out = append(out, clone(vouchers.rows[i]))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleAssignVoucher(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, errU := strconv.ParseInt(q.Get("userId"), 10, 64)
	voucherID, errV := strconv.ParseInt(q.Get("voucherId"), 10, 64)
	if errU != nil || errV != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[userID]; !ok {
		writeProblem(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if b.collections["vouchers"].index(voucherID) < 0 {
		writeProblem(w, http.StatusNotFound, "Voucher not found", nil)
		return
	}
	if slices.Contains(b.members[userID], voucherID) {
		writeProblem(w, http.StatusBadRequest, "Voucher already assigned", nil)
		return
	}
	b.members[userID] = append(b.members[userID], voucherID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Voucher assigned"})
}

func (b *Backend) handleOrderSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	from, to := q.Get("orderDateFrom"), q.Get("orderDateTo")

	b.mu.Lock()
	c := b.collections["orders"]
	var rows []map[string]any
	for _, row := range c.rows {
		dto, _ := row["orderDto"].(map[string]any)
		if status != "" && dto["status"] != status {
			continue
		}
		date, _ := dto["orderDate"].(string)
		if from != "" && date < from {
			continue
		}
		if to != "" && date > to {
			continue
		}
		rows = append(rows, row)
	}
	body := page(rows, r, c.idKey)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	b.mu.Lock()
	c := b.collections["orders"]
	i := c.index(id)
	var row map[string]any
	if i >= 0 {
		row = clone(c.rows[i])
	}
	b.mu.Unlock()
	if row == nil {
		writeProblem(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Order progression the fake enforces. Real rules live in the shop backend.
var nextOrderStatus = map[string]string{
	"PENDING":   "CONFIRMED",
	"PRE_ORDER": "CONFIRMED",
	"CONFIRMED": "COMPLETED",
}

func (b *Backend) handleAdvanceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("orderId"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"orderId": "orderId is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.collections["orders"]
	i := c.index(id)
	if i < 0 {
		writeProblem(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	dto := c.rows[i]["orderDto"].(map[string]any)
	next, ok := nextOrderStatus[dto["status"].(string)]
	if !ok {
		writeProblem(w, http.StatusBadRequest, fmt.Sprintf("Order in status %s cannot be advanced", dto["status"]), nil)
		return
	}
	dto["status"] = next
	writeJSON(w, http.StatusOK, clone(c.rows[i]))
}

func (b *Backend) handleImportStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity   int64 `json:"quantity"`
		ProductID  int64 `json:"productId"`
		SupplierID int64 `json:"supplierId"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	products, suppliers := b.collections["product"], b.collections["suppliers"]
	pi, si := products.index(req.ProductID), suppliers.index(req.SupplierID)
	if pi < 0 {
		writeProblem(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if si < 0 {
		writeProblem(w, http.StatusNotFound, "Supplier not found", nil)
		return
	}
	product := products.rows[pi]
	product["quantityProduct"] = toInt(product["quantityProduct"]) + req.Quantity
	price := toInt(product["price"])
	id := b.collections["stock_transactions"].insert(map[string]any{
		"stockTransactionDate": b.now().UTC().Format("2006-01-02T15:04:05"),
		"quantity":             req.Quantity,
		"totalPrice":           price * req.Quantity,
		"supplier":             clone(suppliers.rows[si]),
		"product":              clone(product),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"stockTransactionId": id})
}

var notFoundTitles = map[string]string{
	"product":    "Product not found",
	"brand":      "Brand not found",
	"categories": "Category not found",
	"blogs":      "Blog not found",
	"vouchers":   "Voucher not found",
}

func notFoundTitle(name string) string {
	if title, ok := notFoundTitles[name]; ok {
		return title
	}
	return "Not Found"
}

func lookup(row map[string]any, path string) any {
	var cur any = row
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// lookupSort finds key as a path or one level down (orderId in orderDto).
func lookupSort(row map[string]any, key string) any {
	if v := lookup(row, key); v != nil {
		return v
	}
	for _, v := range row {
		if m, ok := v.(map[string]any); ok {
			if inner, ok := m[key]; ok {
				return inner
			}
		}
	}
	return nil
}

func compareAny(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if isNumber(a) && isNumber(b) {
		return cmp.Compare(toFloat(a), toFloat(b))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64, json.Number:
		return true
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func toInt(v any) int64 {
	return int64(toFloat(v))
}

// clone deep-copies JSON-shaped values.
func clone(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return clone(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = clone(t[i])
		}
		return out
	}
	return v
}
