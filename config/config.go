package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	// 默认值
	DefaultPort     = 2000
	DefaultStoreURI = "mongodb://127.0.0.1:27017/crm_db"
	DefaultMongoDB  = "crm_db"

	// 引用校验策略
	ReferencePolicyLenient = "lenient"
	ReferencePolicyStrict  = "strict"
)

// Config 应用配置
type Config struct {
	Port            int
	StoreURI        string
	MongoDB         string
	RedisURL        string
	CORSOrigins     []string
	ReferencePolicy string
	Debug           bool
}

// LoadConfig 加载配置，优先级：命令行参数 > 环境变量 > .env 文件 > 默认值
func LoadConfig(args []string) (*Config, error) {
	// .env 不存在时直接使用系统环境变量
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", strconv.Itoa(DefaultPort)))
	if err != nil {
		return nil, fmt.Errorf("无效的PORT: %w", err)
	}

	cfg := &Config{
		Port:            port,
		StoreURI:        getEnv("STORE_URI", DefaultStoreURI),
		MongoDB:         os.Getenv("MONGO_DB"),
		RedisURL:        os.Getenv("REDIS_URL"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		ReferencePolicy: getEnv("REFERENCE_POLICY", ReferencePolicyLenient),
		Debug:           getEnv("GIN_MODE", "release") == "debug",
	}

	flags := pflag.NewFlagSet("crm_sync", pflag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listening port")
	flags.StringVar(&cfg.StoreURI, "store", cfg.StoreURI, "persistence connection string (mongodb://, postgres://, memory://)")
	flags.StringVar(&cfg.MongoDB, "mongo-db", cfg.MongoDB, "MongoDB database name (defaults to the database in the store URI)")
	flags.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL used to relay change events between processes")
	flags.StringVar(&cfg.ReferencePolicy, "reference-policy", cfg.ReferencePolicy, "assignedAgent write policy: lenient or strict")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug mode")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if cfg.MongoDB == "" {
		cfg.MongoDB = databaseFromURI(cfg.StoreURI)
	}

	switch cfg.ReferencePolicy {
	case ReferencePolicyLenient, ReferencePolicyStrict:
	default:
		return nil, fmt.Errorf("无效的REFERENCE_POLICY: %q", cfg.ReferencePolicy)
	}

	return cfg, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// databaseFromURI 从连接串路径中取数据库名
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultMongoDB
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultMongoDB
}
