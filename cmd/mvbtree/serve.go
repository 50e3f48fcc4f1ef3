package main

import (
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/infinivision/mvbtree/constant"
	"github.com/infinivision/mvbtree/db"
	"github.com/infinivision/mvbtree/server"
	"github.com/nnsgmsone/damrey/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	var (
		addr        string
		metricsAddr string
		workers     int
	)
	cfg := db.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the line protocol over TCP",
		RunE: func(_ *cobra.Command, _ []string) error {
			log := logger.New(os.Stderr, "mvbtree")
			if err := db.EnlargeLimit(); err != nil {
				log.Errorf("raising the open file limit: %v\n", err)
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			cfg.Registerer = reg

			d, err := db.Open(cfg)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				d.Close()
				return err
			}
			srv := server.New(ln, d, workers, log)

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Errorf("metrics: %v\n", err)
					}
				}()
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				srv.Close()
			}()

			serr := srv.Serve()
			if err := d.Close(); serr == nil {
				serr = err
			}
			return serr
		},
	}
	cmd.Flags().StringVar(&cfg.DirName, "dir", cfg.DirName, "data directory")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "address to listen on")
	cmd.Flags().IntVar(&cfg.NodeSize, "node-size", cfg.NodeSize, "items per node before a split")
	cmd.Flags().DurationVar(&cfg.CheckPointCycle, "checkpoint-cycle", cfg.CheckPointCycle, "interval between checkpoints")
	cmd.Flags().IntVar(&cfg.CheckPointThreshold, "checkpoint-threshold", cfg.CheckPointThreshold, "mutations that force a checkpoint")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().IntVar(&workers, "workers", constant.Workers, "connections served at once")
	return cmd
}
