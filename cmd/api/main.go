// Command api serves read-only market analytics over HTTP.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"cryptoetl/internal/config"
	"cryptoetl/internal/handler"
	"cryptoetl/internal/svc"
)

var configFile = flag.String("f", "etc/api.yaml", "the config file")

func main() {
	flag.Parse()

	cfg, err := config.LoadAPI(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	ctx, err := svc.NewAPIContext(*cfg)
	if err != nil {
		logx.Errorf("init api context err=%v", err)
		os.Exit(1)
	}
	defer ctx.Close()
	handler.RegisterHandlers(server, ctx)

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
