package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/invoices/?"+query, nil)
	return c
}

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20, Offset: 0}},
		{"page=3&limit=10", Params{Page: 3, Limit: 10, Offset: 20}},
		{"page=2&page_size=5", Params{Page: 2, Limit: 5, Offset: 5}},
		{"page=-1&limit=0", Params{Page: 1, Limit: 20, Offset: 0}},
		{"limit=500", Params{Page: 1, Limit: 100, Offset: 0}},
		{"page=abc", Params{Page: 1, Limit: 20, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(contextWithQuery(tt.query)))
		})
	}
}
