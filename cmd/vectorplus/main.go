// VectorPlus 策略引擎主程序
// 功能：为限价单协议提供波动率自适应、TWAP 分片与执行权期权三类取数策略
// 架构：DDD 分层 + Gin HTTP + gRPC 健康检查 + 可选 MySQL/Redis/Kafka
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	facadeapp "github.com/wyfcoding/vectorplus/internal/facade/application"
	facadehttp "github.com/wyfcoding/vectorplus/internal/facade/interfaces/http"
	optapp "github.com/wyfcoding/vectorplus/internal/options/application"
	optdomain "github.com/wyfcoding/vectorplus/internal/options/domain"
	optcache "github.com/wyfcoding/vectorplus/internal/options/infrastructure/cache"
	"github.com/wyfcoding/vectorplus/internal/options/infrastructure/messaging"
	"github.com/wyfcoding/vectorplus/internal/options/infrastructure/persistence/memory"
	optmysql "github.com/wyfcoding/vectorplus/internal/options/infrastructure/persistence/mysql"
	twapapp "github.com/wyfcoding/vectorplus/internal/twap/application"
	twapdomain "github.com/wyfcoding/vectorplus/internal/twap/domain"
	volapp "github.com/wyfcoding/vectorplus/internal/volatility/application"
	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/cache"
	"github.com/wyfcoding/vectorplus/pkg/config"
	"github.com/wyfcoding/vectorplus/pkg/db"
	"github.com/wyfcoding/vectorplus/pkg/logger"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/middleware"
	"github.com/wyfcoding/vectorplus/pkg/mq"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
	"github.com/wyfcoding/vectorplus/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// closer 退出时按注册逆序释放的资源
type closer struct {
	name string
	fn   func() error
}

func main() {
	configPath := flag.String("config", "configs/vectorplus.toml", "config file path")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()

	if err := run(cfg, log); err != nil {
		log.Error("VectorPlus exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "Starting VectorPlus",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
		"network", cfg.Strategy.Network,
	)

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(); err != nil {
				log.Error("Failed to close resource", "resource", closers[i].name, "error", err)
			}
		}
	}()

	// 3. 初始化指标
	m := metrics.New(cfg.ServiceName)

	// 4. 初始化期权账本
	var repo optdomain.Repository
	switch cfg.Database.Driver {
	case "mysql":
		database, err := db.Open(ctx, cfg.Database, log, m)
		if err != nil {
			return err
		}
		closers = append(closers, closer{"database", database.Close})
		mysqlRepo := optmysql.NewOptionRepo(database)
		if cfg.Database.AutoMigrate {
			if err := mysqlRepo.AutoMigrate(); err != nil {
				return fmt.Errorf("failed to migrate option ledger: %w", err)
			}
		}
		repo = mysqlRepo
	default:
		repo = memory.NewOptionRepo()
		log.WarnContext(ctx, "Using in-memory option ledger, state is lost on restart")
	}

	// 5. 初始化 Redis：账本读缓存与分布式限流
	var limiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		closers = append(closers, closer{"redis", redisCache.Close})
		repo = optcache.NewCachedRepo(repo, redisCache, cfg.Redis.TTL, log, m)
		limiter = ratelimit.NewRedisRateLimiter(redisCache.Client())
	}

	// 6. 初始化事件发布
	var publisher optdomain.EventPublisher = messaging.NewLogPublisher(log)
	if cfg.Kafka.Enabled {
		producer := mq.NewProducer(cfg.Kafka, log)
		closers = append(closers, closer{"kafka", producer.Close})
		publisher = messaging.NewKafkaPublisher(producer, cfg.Kafka.Topic, m)
	}

	// 7. 初始化应用服务
	facade, handler, err := buildServices(cfg, repo, publisher, log, m)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "Strategies ready", "contracts", facade.Contracts())

	// 8. 创建服务器
	httpServer := createHTTPServer(cfg, handler, limiter, log, m)
	grpcServer, healthServer := createGRPCServer(cfg, limiter, log, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC address: %w", err)
		}
		log.InfoContext(ctx, "Starting gRPC server", "addr", cfg.GRPC.Addr())
		return grpcServer.Serve(lis)
	})

	// 9. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down VectorPlus")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("VectorPlus stopped")
	return nil
}

// buildServices 组装策略计算器、期权服务与门面
func buildServices(cfg *config.Config, repo optdomain.Repository, publisher optdomain.EventPublisher, log *slog.Logger, m *metrics.Metrics) (*facadeapp.StrategyFacade, *facadehttp.Handler, error) {
	clock := protocol.SystemClock
	volEngine := voldomain.NewEngine()

	vol := volapp.NewCalculator(volEngine, clock, log, m)
	twap := twapapp.NewExecutor(twapdomain.NewEngine(volEngine), clock, log, m)
	options := optapp.NewOptionService(repo, publisher, clock, optapp.Config{
		DefaultImpliedVolatility: cfg.Strategy.Options.ImpliedVolatility,
		DefaultExpiration:        uint64(cfg.Strategy.Options.DefaultExpiration / time.Second),
	}, log, m)

	defaults, err := templateDefaults(cfg.Strategy)
	if err != nil {
		return nil, nil, err
	}
	facade := facadeapp.NewStrategyFacade(vol, twap, optapp.NewCalculator(repo, log, m), volEngine, facadeapp.Config{
		Contracts: facadeapp.Contracts{
			Network:              cfg.Strategy.Network,
			VolatilityCalculator: cfg.Strategy.Contracts.VolatilityCalculator,
			TWAPExecutor:         cfg.Strategy.Contracts.TWAPExecutor,
			OptionsCalculator:    cfg.Strategy.Contracts.OptionsCalculator,
		},
		GasEstimates: cfg.Strategy.GasEstimates,
		Defaults:     defaults,
		Clock:        clock,
	}, log)

	return facade, facadehttp.NewHandler(facade, vol, twap, options), nil
}

func templateDefaults(s config.StrategyConfig) (facadeapp.Defaults, error) {
	maxSize, err := decimal.NewFromString(s.Volatility.MaxExecutionSize)
	if err != nil {
		return facadeapp.Defaults{}, fmt.Errorf("invalid max_execution_size: %w", err)
	}
	minSize, err := decimal.NewFromString(s.Volatility.MinExecutionSize)
	if err != nil {
		return facadeapp.Defaults{}, fmt.Errorf("invalid min_execution_size: %w", err)
	}
	return facadeapp.Defaults{
		Volatility: facadeapp.VolatilityDefaults{
			BaselineVolatility: s.Volatility.BaselineVolatility,
			MaxExecutionSize:   maxSize,
			MinExecutionSize:   minSize,
			ConservativeMode:   s.Volatility.ConservativeMode,
		},
		TWAP: facadeapp.TWAPDefaults{
			Duration:           s.TWAP.Duration,
			Intervals:          s.TWAP.Intervals,
			RandomizeExecution: s.TWAP.RandomizeExecution,
			AdaptiveIntervals:  s.TWAP.AdaptiveIntervals,
		},
	}, nil
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, handler *facadehttp.Handler, limiter ratelimit.RateLimiter, log *slog.Logger, m *metrics.Metrics) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.CORS(),
		middleware.Metrics(m),
	)

	var writeLimit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		writeLimit = append(writeLimit, middleware.RateLimit(limiter, cfg.RateLimit, log))
	}
	handler.RegisterRoutes(router.Group("/api/v1"), writeLimit...)

	sys := router.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "healthy",
				"service":   cfg.ServiceName,
				"version":   cfg.Version,
				"timestamp": time.Now().Unix(),
			})
		})
	}
	if cfg.Environment != "prod" {
		pp := router.Group("/debug/pprof")
		{
			pp.GET("/", gin.WrapF(pprof.Index))
			pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pp.GET("/profile", gin.WrapF(pprof.Profile))
			pp.GET("/symbol", gin.WrapF(pprof.Symbol))
			pp.GET("/trace", gin.WrapF(pprof.Trace))
			pp.GET("/:name", func(c *gin.Context) {
				pprof.Handler(c.Param("name")).ServeHTTP(c.Writer, c.Request)
			})
		}
	}
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	return &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
}

// createGRPCServer 创建 gRPC 服务器，当前仅暴露健康检查与反射
func createGRPCServer(cfg *config.Config, limiter ratelimit.RateLimiter, log *slog.Logger, m *metrics.Metrics) (*grpc.Server, *health.Server) {
	interceptors := []grpc.UnaryServerInterceptor{
		middleware.GRPCRecoveryInterceptor(log),
		middleware.GRPCLoggingInterceptor(log),
		middleware.GRPCMetricsInterceptor(m),
	}
	if cfg.RateLimit.Enabled {
		interceptors = append(interceptors, middleware.RateLimitInterceptor(limiter, cfg.RateLimit))
	}
	interceptors = append(interceptors, middleware.GRPCErrorInterceptor())

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxConcurrentStreams(cfg.GRPC.MaxConcurrentStreams),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server, healthServer
}
