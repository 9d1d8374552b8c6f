package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/app"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/config"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
)

const usage = `usage: optimizer [-config path] <command>

commands:
  run     evaluate the parameter space and write results (default)
  fetch   sync klines from Binance futures into the candle store
  serve   expose stored runs over HTTP
`

func main() {
	fs := flag.NewFlagSet("optimizer", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "config path (env "+config.EnvPath+")")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	_ = fs.Parse(os.Args[1:])
	cmd := "run"
	if fs.NArg() > 0 {
		cmd = strings.ToLower(fs.Arg(0))
	}

	cfgPath := config.ResolvePath(*cfgFlag)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetFormat(cfg.App.LogFormat)
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，配置=%s）", cfg.App.Env, cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer a.Close()

	if err := dispatch(ctx, a, cmd); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warnf("已中断: %v", err)
			return
		}
		a.Close()
		log.Fatalf("运行失败: %v", err)
	}
}

func dispatch(ctx context.Context, a *app.App, cmd string) error {
	switch cmd {
	case "run":
		out, err := a.RunOptimization(ctx)
		if out != nil {
			logger.Infof("run %s: passed %d / evaluated %d", out.RunID, out.Report.PassedCount(), out.Report.Evaluated())
		}
		return err
	case "fetch":
		rep, err := a.Fetch(ctx)
		if err != nil {
			return err
		}
		logger.Infof("fetch %s %s: requests=%d written=%d", rep.Symbol, rep.Timeframe, rep.Requests, rep.Written)
		return nil
	case "serve":
		return a.Serve(ctx)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
