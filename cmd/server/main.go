package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/docuhub/vector-go/app/bootstrap"
	"github.com/docuhub/vector-go/app/router"
	"github.com/docuhub/vector-go/internal/config"
	"github.com/docuhub/vector-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "Document Vector Service"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("starting document vector service",
		zap.Int("port", web.BConfig.Listen.HTTPPort),
		zap.String("env", config.AppConfig.Server.Env))
	web.Run()
}
