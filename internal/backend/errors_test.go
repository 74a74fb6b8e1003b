package backend

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "milkadmin/pkg/domain-errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusNotFound, KindNotFound},
		{http.StatusInternalServerError, KindServer},
		{http.StatusConflict, KindUnknown},
		{http.StatusBadGateway, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.kind, classify(tt.status))
		})
	}
}

func TestMessages(t *testing.T) {
	t.Run("validation with field errors lists every message in field order", func(t *testing.T) {
		err := newStatusError("POST", "vouchers", 400, []byte(`{
			"status": 400, "title": "Bad Request",
			"errors": {"voucherName": "Voucher Name Required", "quantity": ["must be at least 1", "must be a number"]}
		}`))
		assert.Equal(t, []string{"must be at least 1", "must be a number", "Voucher Name Required"}, err.Messages())
		assert.Equal(t, []string{"Voucher Name Required"}, err.FieldErrors["voucherName"])
	})

	t.Run("validation without field errors uses the title", func(t *testing.T) {
		err := newStatusError("POST", "brand", 400, []byte(`{"title":"Brand exists"}`))
		assert.Equal(t, []string{"Brand exists"}, err.Messages())
	})

	t.Run("auth, not found and server errors use the title", func(t *testing.T) {
		for _, status := range []int{401, 403, 404, 500} {
			err := newStatusError("GET", "product", status, []byte(`{"title":"Nope"}`))
			assert.Equal(t, []string{"Nope"}, err.Messages(), status)
		}
	})

	t.Run("message and error fields stand in for a missing title", func(t *testing.T) {
		err := newStatusError("GET", "product", 404, []byte(`{"message":"Product not found"}`))
		assert.Equal(t, "Product not found", err.Title)
		err = newStatusError("GET", "product", 401, []byte(`{"error":"Unauthorized"}`))
		assert.Equal(t, "Unauthorized", err.Title)
	})

	t.Run("other statuses get the generic message", func(t *testing.T) {
		err := newStatusError("GET", "product", 409, []byte(`{"title":"Conflict"}`))
		assert.Equal(t, []string{"Something unexpected went wrong"}, err.Messages())
	})

	t.Run("non-json bodies keep the status only", func(t *testing.T) {
		err := newStatusError("GET", "product", 500, []byte(`<html>oops</html>`))
		assert.Equal(t, KindServer, err.Kind)
		assert.Equal(t, []string{"Something unexpected went wrong"}, err.Messages())
	})

	t.Run("transport failures", func(t *testing.T) {
		err := &APIError{Kind: KindUnavailable, Method: "GET", Path: "product", Err: errors.New("dial tcp: refused")}
		assert.Equal(t, []string{"The shop backend is unreachable"}, err.Messages())
		assert.Contains(t, err.Error(), "dial tcp")
	})
}

func TestToDomain(t *testing.T) {
	t.Run("validation keeps fields", func(t *testing.T) {
		apiErr := newStatusError("POST", "brand", 400, []byte(`{"errors":{"brandName":"Brand Name Required"}}`))
		err := ToDomain(apiErr)

		var domainErr *dErrors.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, dErrors.CodeValidation, domainErr.Code)
		assert.Equal(t, "Brand Name Required", domainErr.Message)
		assert.Equal(t, []string{"Brand Name Required"}, domainErr.Fields["brandName"])
		assert.ErrorIs(t, err, apiErr)
	})

	t.Run("kind to code", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(ToDomain(&APIError{Kind: KindAuth}), dErrors.CodeUnauthorized))
		assert.True(t, dErrors.HasCode(ToDomain(&APIError{Kind: KindNotFound}), dErrors.CodeNotFound))
		assert.True(t, dErrors.HasCode(ToDomain(&APIError{Kind: KindServer}), dErrors.CodeUpstream))
		assert.True(t, dErrors.HasCode(ToDomain(&APIError{Kind: KindUnknown}), dErrors.CodeUpstream))
		assert.True(t, dErrors.HasCode(ToDomain(&APIError{Kind: KindUnavailable}), dErrors.CodeUnavailable))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		plain := errors.New("boom")
		assert.Same(t, plain, ToDomain(plain))
	})
}
