package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"klinefetch/internal/app"
	"klinefetch/internal/audit"
	"klinefetch/internal/backtest"
	"klinefetch/internal/config"
	"klinefetch/internal/export"
	"klinefetch/internal/logger"

	"github.com/spf13/pflag"
)

const defaultConfigPath = "configs/config.yaml"

const usage = `用法: klinefetch [-c config.yaml] <命令> [参数]

命令:
  export    按回退顺序拉取 K 线并写入 CSV
  audit     检查 CSV 的缺口、重复与乱序
  watch     每根 K 线收盘后计算 EMA 信号并推送
  backtest  用导出的 CSV 回放 EMA 趋势策略
  config    打印生效配置
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	global := pflag.NewFlagSet("klinefetch", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	cfgPath := global.StringP("config", "c", "", "配置文件路径（默认读取 $"+config.EnvConfigPath+"）")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	cmd, cmdArgs := rest[0], rest[1:]

	path := resolveConfigPath(*cfgPath)
	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("读取配置失败: %v", err)
		return 2
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Printf("初始化日志文件失败: %v", err)
		return 2
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，文件=%s）", cfg.App.Env, path)

	if cmd == "config" {
		out, err := config.Dump(cfg)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		_, _ = stdout.Write(out)
		return 0
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Printf("初始化应用失败: %v", err)
		return 2
	}
	switch cmd {
	case "export":
		return runExport(ctx, a, cmdArgs, stdout)
	case "audit":
		return runAudit(a, cmdArgs, stdout)
	case "watch":
		a.Summary.Print()
		if err := a.Watch(ctx, path); err != nil {
			log.Printf("运行失败: %v", err)
			return 1
		}
		return 0
	case "backtest":
		return runBacktest(ctx, a, cmdArgs, stdout)
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n\n%s", cmd, usage)
		return 2
	}
}

func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); p != "" {
		return p
	}
	return defaultConfigPath
}

func runExport(ctx context.Context, a *app.App, args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	out := fs.StringP("out", "o", "", "输出 CSV 路径（默认 export.output）")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	fmt.Fprintln(stdout, a.Summary.String())
	rep, err := a.Export(ctx, *out)
	if err != nil {
		if errors.Is(err, export.ErrNoSourceAvailable) {
			log.Printf("所有数据源均失败，未写入文件: %v", err)
		} else {
			log.Printf("导出失败: %v", err)
		}
		return 1
	}
	fmt.Fprintf(stdout, "run=%s source=%s rows=%d -> %s\n", rep.RunID, rep.Source, rep.Written, rep.Output)
	return 0
}

func runAudit(a *app.App, args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	in := fs.StringP("in", "i", "", "待检查的 CSV（默认 export.output）")
	gaps := fs.Int("gaps", 20, "最多列出的缺口数，0 表示全部")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rep, err := a.Audit(*in)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	fmt.Fprintln(stdout, audit.Render(rep, *gaps))
	if !rep.Clean() {
		return 1
	}
	return 0
}

func runBacktest(ctx context.Context, a *app.App, args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("backtest", pflag.ContinueOnError)
	in := fs.StringP("in", "i", "", "K 线 CSV（默认 backtest.input）")
	trades := fs.Int("trades", a.Config().Backtest.TradeLimit, "列出最近的平仓笔数")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rep, err := a.Backtest(ctx, *in)
	if err != nil {
		log.Printf("回测失败: %v", err)
		return 1
	}
	fmt.Fprintln(stdout, backtest.Render(rep, *trades))
	return 0
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
