// @title imgconv 图像转换服务 API 文档
// @version 1.0
// @description 图像格式转换、批量压缩包转换与预览接口
// @host localhost:8080
// @BasePath /api
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"imgconv-server-go/internal/bootstrap"
	"imgconv-server-go/internal/platform/config"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml or ./configs/config.yaml)")
	dumpConfig := flag.Bool("dump-config", false, "print the effective configuration as YAML and exit")
	noDotEnv := flag.Bool("no-dotenv", false, "do not load variables from .env")
	flag.Parse()

	if *dumpConfig {
		if err := dump(*configPath, !*noDotEnv); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "imgconv-server: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("[%s] [INFO] [引导] 开始启动 imgconv-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	opts := bootstrap.Options{ConfigPath: *configPath, DotEnv: !*noDotEnv}
	if err := bootstrap.Run(context.Background(), opts); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "imgconv-server failed: %v\n", err)
		os.Exit(1)
	}
}

func dump(path string, dotEnv bool) error {
	loader := config.NewLoader().WithDotEnv(dotEnv)
	if path != "" {
		loader = loader.WithFile(path)
	}
	result, err := loader.Load()
	if err != nil {
		return err
	}
	out, err := config.Dump(result.Config)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
