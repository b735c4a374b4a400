// Package testutil 提供 HTTP 处理器测试的公共辅助函数
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelper 提供测试辅助函数
type TestHelper struct {
	t *testing.T
}

// NewTestHelper 创建测试辅助实例
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// SetupTestGin 测试模式的Gin引擎，返回 /api/v1 路由组
func (h *TestHelper) SetupTestGin() (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r, r.Group("/api/v1")
}

// MakeRequest 创建HTTP测试请求，body 为字符串时原样发送
func (h *TestHelper) MakeRequest(method, url string, body interface{}) *http.Request {
	var reqBody []byte

	switch b := body.(type) {
	case nil:
	case string:
		reqBody = []byte(b)
	default:
		var err error
		reqBody, err = json.Marshal(body)
		require.NoError(h.t, err, "Failed to marshal request body")
	}

	req, err := http.NewRequest(method, url, bytes.NewBuffer(reqBody))
	require.NoError(h.t, err, "Failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Do 构建并执行请求
func (h *TestHelper) Do(r *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, h.MakeRequest(method, url, body))
	return w
}

// DecodeJSON 解析响应体
func (h *TestHelper) DecodeJSON(w *httptest.ResponseRecorder, out interface{}) {
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), out), "Response body should be valid JSON: %s", w.Body.String())
}

// AssertStatusCode 断言状态码
func (h *TestHelper) AssertStatusCode(w *httptest.ResponseRecorder, expectedCode int) {
	assert.Equal(h.t, expectedCode, w.Code, "Response code should match, body: %s", w.Body.String())
}

// AssertErrorCode 断言错误响应中的错误码
func (h *TestHelper) AssertErrorCode(w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	h.AssertStatusCode(w, expectedStatus)

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	h.DecodeJSON(w, &body)
	assert.False(h.t, body.Success)
	assert.Equal(h.t, expectedCode, body.Code)
}
