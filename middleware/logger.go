package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/gin-gonic/gin"
)

// 请求日志中只保留前 maxLoggedBody 字节
const maxLoggedBody = 4096

// bodyLogWriter 用于记录响应内容
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现 ResponseWriter 接口
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}

// Logger 日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// 推送通道升级后不再是普通的请求响应
		if path == "/ws" {
			utils.LogApiRequest(method, path, c.Request.URL.Query(), nil)
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		blw := &bodyLogWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBufferString(""),
		}
		c.Writer = blw

		utils.LogApiRequest(method, path, c.Request.URL.Query(), truncate(requestBody))

		c.Next()

		utils.LogApiResponse(method, path, c.Writer.Status(), time.Since(start), truncate(blw.body.Bytes()))
	}
}

// Recovery 恢复中间件
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		utils.Logger.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("服务崩溃")

		c.AbortWithStatusJSON(500, gin.H{
			"error": "服务器内部错误",
			"code":  "INTERNAL_ERROR",
		})
	})
}
