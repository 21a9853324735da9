package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent-copilot/internal/agent"
	"talent-copilot/internal/api/handler"
	"talent-copilot/internal/api/router"
	"talent-copilot/internal/config"
	appCoreLogger "talent-copilot/internal/logger"
	"talent-copilot/internal/parser"
	"talent-copilot/internal/processor"
	"talent-copilot/internal/session"
	"talent-copilot/internal/storage"
	"talent-copilot/internal/tracing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/pflag"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}
	logCloser := appCoreLogger.Init(cfg.Logger)
	defer logCloser.Close()
	initHertzLogger(cfg.Logger.Level)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		glog.Warnf("初始化链路追踪失败，继续运行: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	sessionStore := session.NewStore(storageManager.Redis, cfg.Session.KeyPrefix, cfg.SessionTTL())
	storeKind := "memory"
	if storageManager.Redis != nil {
		storeKind = "redis"
	}

	// 缺少 API Key 时服务照常启动，页面显示阻断提示，需要模型的接口返回 503
	var llm model.ToolCallingChatModel
	var llmErr error
	chatModel, err := agent.NewOpenAIChatModel(agent.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		llmErr = err
		glog.Warnf("LLM 不可用: %v", err)
	} else {
		llm = chatModel
	}

	var executor storage.QueryExecutor
	sqlMode := cfg.SQL.ExecutionMode
	if storageManager.Database != nil {
		sqlExecutor := storage.NewSQLExecutor(storageManager.Database, cfg.SQL)
		sqlMode = sqlExecutor.Mode()
		executor = sqlExecutor
	}
	assistant, err := processor.NewSQLAssistant(llm, executor)
	if err != nil {
		glog.Fatalf("初始化 SQL 助手失败: %v", err)
	}

	documents, err := parser.NewDocumentExtractor(ctx, cfg.Extractor)
	if err != nil {
		glog.Fatalf("初始化文档解析器失败: %v", err)
	}

	interviewService := processor.NewInterviewService(
		sessionStore,
		documents,
		processor.NewResumeExtractor(llm),
		processor.NewQuestionGenerator(llm),
		processor.NewAnswerEvaluator(llm),
	)

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(llmErr, storageManager.Database != nil, sqlMode, storeKind),
		SQL:    handler.NewSQLHandler(assistant, llmErr),
		Interview: handler.NewInterviewHandler(interviewService,
			handler.WithSessionCookie(cfg.Session.CookieName, cfg.SessionTTL()),
			handler.WithMaxUploadBytes(cfg.Extractor.MaxUploadBytes),
			handler.WithLLMError(llmErr),
		),
	}

	// 请求体上限留出 multipart 包装的余量，超限的文件由处理器返回 413
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(int(cfg.Extractor.MaxUploadBytes)+1<<20),
	)
	router.RegisterRoutes(h, handlers, router.Options{APIToken: cfg.Server.APIToken})
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil && !errors.Is(err, context.Canceled) {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initHertzLogger 让 Hertz 的日志也走 zerolog
func initHertzLogger(level string) {
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	switch level {
	case "debug":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}
