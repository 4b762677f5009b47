package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerniceZTT/crm_sync/config"
	"github.com/BerniceZTT/crm_sync/controllers"
	"github.com/BerniceZTT/crm_sync/middleware"
	"github.com/BerniceZTT/crm_sync/realtime"
	"github.com/BerniceZTT/crm_sync/repository"
	"github.com/BerniceZTT/crm_sync/routes"
	"github.com/BerniceZTT/crm_sync/service"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 初始化日志
	utils.InitLogger(cfg.Debug)

	// 设置Gin模式
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 连接存储，失败时无法提供服务
	store, err := repository.Open(ctx, cfg.StoreURI, cfg.MongoDB)
	if err != nil {
		utils.Logger.Fatal().Err(err).Msg("连接数据存储失败")
	}

	// 推送中心
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := realtime.NewHub()
	go hub.Run(hubCtx)

	var notifier service.Notifier = hub
	var relay *realtime.RedisRelay
	if cfg.RedisURL != "" {
		relay, err = realtime.NewRedisRelay(ctx, cfg.RedisURL, hub)
		if err != nil {
			utils.Logger.Fatal().Err(err).Msg("连接Redis失败")
		}
		notifier = relay
		go func() {
			if err := relay.Run(hubCtx); err != nil {
				utils.Logger.Error().Err(err).Msg("Redis事件订阅已停止，只推送本地事件")
			}
		}()
	}

	strict := cfg.ReferencePolicy == config.ReferencePolicyStrict
	customerService := service.NewCustomerService(store, service.NewResolver(store, strict), notifier)
	agentService := service.NewAgentService(store, notifier)

	// 创建Gin实例
	router := gin.New()

	// 应用中间件
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.OperationLoggerMiddleware(store))

	// 注册路由
	routes.RegisterRoutes(router, routes.Dependencies{
		Customers:   controllers.NewCustomerController(customerService),
		Agents:      controllers.NewAgentController(agentService),
		Store:       store,
		PushHandler: hub.ServeWS,
	})

	// 设置HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info().
			Str("store", cfg.StoreURI).
			Str("referencePolicy", cfg.ReferencePolicy).
			Bool("redisRelay", relay != nil).
			Msgf("服务器启动，监听端口: %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal().Err(err).Msg("启动服务器失败")
		}
	}()

	// 优雅关闭
	<-ctx.Done()
	utils.Logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error().Err(err).Msg("服务器关闭异常")
	}

	stopHub()
	<-hub.Done()
	if relay != nil {
		if err := relay.Close(); err != nil {
			utils.Logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if err := store.Close(shutdownCtx); err != nil {
		utils.Logger.Error().Err(err).Msg("关闭数据存储失败")
	}

	utils.Logger.Info().Msg("服务器已优雅关闭")
}
