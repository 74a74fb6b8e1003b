package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemas(t *testing.T) {
	schemas, err := DefaultSchemas()
	require.NoError(t, err)

	t.Run("accepts a valid page", func(t *testing.T) {
		body := `{"content":[{"productId":1,"productName":"Sữa","price":120000,"image":"[a,b]"}],"totalPages":1,"totalElements":1,"pageNo":0,"pageSize":10}`
		assert.NoError(t, schemas.Page(SchemaProduct)([]byte(body)))
	})

	t.Run("rejects a page without totals", func(t *testing.T) {
		assert.Error(t, schemas.Page(SchemaBrand)([]byte(`{"content":[]}`)))
	})

	t.Run("rejects rows of the wrong shape", func(t *testing.T) {
		body := `{"content":[{"brandId":"one","brandName":"x"}],"totalPages":1,"totalElements":1}`
		assert.Error(t, schemas.Page(SchemaBrand)([]byte(body)))
	})

	t.Run("validates single records", func(t *testing.T) {
		assert.NoError(t, schemas.Item(SchemaOrder)([]byte(`{"orderDto":{"orderId":5,"status":"PENDING"}}`)))
		assert.Error(t, schemas.Item(SchemaOrder)([]byte(`{"orderDto":{"orderId":5}}`)))
	})

	t.Run("unknown schema fails closed", func(t *testing.T) {
		assert.Error(t, schemas.Page("warehouse")([]byte(`{}`)))
	})

	t.Run("invalid json fails", func(t *testing.T) {
		assert.Error(t, schemas.Page(SchemaProduct)([]byte(`{`)))
	})
}
