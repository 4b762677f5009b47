package models

import (
	"time"
)

// OperationLog 操作日志结构体，记录每个写请求
type OperationLog struct {
	ID            string      `json:"_id,omitempty" bson:"-"`
	Method        string      `json:"method" bson:"method"`
	Path          string      `json:"path" bson:"path"`
	RequestBody   interface{} `json:"requestBody" bson:"requestBody"`
	ResponseData  interface{} `json:"responseData" bson:"responseData"`
	StatusCode    int         `json:"statusCode" bson:"statusCode"`
	Success       bool        `json:"success" bson:"success"`
	ErrorMessage  string      `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
	OperationTime time.Time   `json:"operationTime" bson:"operationTime"`
	ResponseTime  int64       `json:"responseTime" bson:"responseTime"` // 毫秒
	IPAddress     string      `json:"ipAddress" bson:"ipAddress"`
	UserAgent     string      `json:"userAgent" bson:"userAgent"`
}
