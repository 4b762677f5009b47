package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger 全局日志对象
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// InitLogger 初始化日志系统
//
// 调试模式输出便于阅读的控制台格式并打开 debug 级别，否则输出 JSON。
func InitLogger(debug bool) {
	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if debug {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("service", "crm_sync").
		Logger()

	Logger.Info().Bool("debug", debug).Msg("日志系统初始化完成")
}

// LogApiRequest 记录API请求
func LogApiRequest(method, url string, params, body interface{}) {
	Logger.Info().
		Str("method", method).
		Str("url", url).
		Interface("params", params).
		Interface("body", body).
		Msg("API请求")
}

// LogApiResponse 记录API响应，4xx 记为警告，5xx 记为错误
func LogApiResponse(method, url string, statusCode int, responseTime time.Duration, responseBody interface{}) {
	var event *zerolog.Event
	switch {
	case statusCode >= 500:
		event = Logger.Error()
	case statusCode >= 400:
		event = Logger.Warn()
	default:
		event = Logger.Info()
	}
	event.
		Str("method", method).
		Str("url", url).
		Int("statusCode", statusCode).
		Dur("responseTime", responseTime).
		Interface("body", responseBody).
		Msg("API响应")
}

func LogInfo(fields map[string]interface{}, message string) {
	Logger.Info().Fields(fields).Msg(message)
}

// LogError 记录错误
func LogError(err error, fields map[string]interface{}, message string) {
	Logger.Error().Err(err).Fields(fields).Msg(message)
}

// LogDbOperation 以 debug 级别记录数据库写操作
func LogDbOperation(operation, collection string, target, result interface{}) {
	Logger.Debug().
		Str("operation", operation).
		Str("collection", collection).
		Interface("target", target).
		Interface("result", result).
		Msg("数据库操作")
}
