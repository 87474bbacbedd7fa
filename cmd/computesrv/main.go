// Command computesrv runs the compute server: host and port are
// positional arguments; credentials, allow-list, cache size, transport,
// audit and metrics settings come from config.GlobalCfg. The executor
// plans chunks with its own MaxChunkCount/MinChunkSize constants.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cppla/computesrv/auditlog"
	"github.com/cppla/computesrv/config"
	"github.com/cppla/computesrv/dispatch"
	"github.com/cppla/computesrv/metricsx"
	"github.com/cppla/computesrv/netsrv"
	"github.com/cppla/computesrv/netsrvquic"
	"github.com/cppla/computesrv/rescache"
	"github.com/cppla/computesrv/utils"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options] host port\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
}

func main() {
	help := pflag.BoolP("help", "h", false, "show this help text")
	cfgPath := pflag.StringP("config", "c", "", "override COMPUTESRV_CONFIG path")
	pflag.Parse()

	if *help || pflag.NArg() != 2 {
		usage()
		os.Exit(1)
	}

	if *cfgPath != "" {
		if err := config.Reload(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
			os.Exit(1)
		}
	}

	host, port := pflag.Arg(0), pflag.Arg(1)
	listenAddr := net.JoinHostPort(host, port)

	logger := utils.Logger
	defer logger.Sync()

	cache := rescache.New(config.GlobalCfg.Cache.MaxCost)

	var audit *auditlog.Recorder
	if config.GlobalCfg.Audit.Path != "" {
		var err error
		audit, err = auditlog.Open(config.GlobalCfg.Audit.Path)
		if err != nil {
			logger.Error("failed to open audit log, continuing without it", zap.Error(err))
		} else {
			defer audit.Close()
		}
	}

	d := dispatch.New(cache, logger, audit)
	defer d.Close()

	srvCfg := netsrv.Config{
		ListenAddr:       listenAddr,
		Credentials:      config.GlobalCfg.Credentials,
		AllowListEnabled: config.GlobalCfg.AllowListEnabled,
		AllowList:        config.GlobalCfg.AllowList,
	}

	if config.GlobalCfg.Metrics.Listen != "" {
		go func() {
			if err := metricsx.Serve(config.GlobalCfg.Metrics.Listen); err != nil {
				logger.Error("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	switch config.GlobalCfg.Transport {
	case "quic":
		qs := netsrvquic.NewServer(netsrvquic.Config{
			ListenAddr:  listenAddr,
			Credentials: config.GlobalCfg.Credentials,
		}, d, logger)
		d.SetServer(qs)
		if err := qs.Open(); err != nil {
			logger.Fatal("failed to open quic endpoint", zap.Error(err))
		}
	default:
		srv := netsrv.NewServer(srvCfg, d, logger)
		d.SetServer(srv)
		if err := srv.Open(); err != nil {
			logger.Fatal("failed to open endpoint", zap.Error(err))
		}
	}

	logger.Info("computesrv started", zap.String("listen", listenAddr), zap.String("transport", config.GlobalCfg.Transport))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}
