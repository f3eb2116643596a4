package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessWithPagination(t *testing.T) {
	resp := SuccessWithPagination(http.StatusOK, []string{"a"}, 2, 20, 41)

	assert.Equal(t, "success", resp.Status)
	if assert.NotNil(t, resp.Meta) {
		assert.Equal(t, 3, resp.Meta.TotalPages)
		assert.Equal(t, int64(41), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Page)
	}
}

func TestSuccessWithPagination_Empty(t *testing.T) {
	resp := SuccessWithPagination(http.StatusOK, []string{}, 1, 20, 0)
	assert.Equal(t, 0, resp.Meta.TotalPages)
}

func TestErrorWithCode(t *testing.T) {
	resp := ErrorWithCode(http.StatusConflict, "already_converted", "proforma has already been converted")

	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_converted", resp.Code)
	assert.Nil(t, resp.Data)
}
