package main

import (
	"crypto/rsa"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"minitls-server/server"
	"minitls-server/shared"
)

func main() {
	cfg := shared.LoadServerConfig()

	log, err := shared.NewLoggerFromEnv("tlsd")
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	certChain, key, err := loadKeyMaterial(cfg, log)
	if err != nil {
		log.Fatal("loading key material", zap.Error(err))
	}

	srv := server.New(log, certChain, key)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal("tcp listen", zap.Error(err))
	}
	go srv.Serve(lis)

	var vsockLis net.Listener
	if cfg.VsockPort != 0 {
		vsockLis, err = shared.ListenVsock(cfg.VsockPort)
		if err != nil {
			log.Fatal("vsock listen", zap.Error(err), zap.Uint32("port", cfg.VsockPort))
		}
		go srv.Serve(vsockLis)
	}

	var wsServer *http.Server
	if cfg.WSListenAddr != "" {
		wsServer = &http.Server{Addr: cfg.WSListenAddr, Handler: srv.WSHandler()}
		go func() {
			if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("websocket server", zap.Error(err))
			}
		}()
		log.Info("websocket transport enabled", zap.String("addr", cfg.WSListenAddr))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	lis.Close()
	if vsockLis != nil {
		vsockLis.Close()
	}
	if wsServer != nil {
		wsServer.Close()
	}
}

func loadKeyMaterial(cfg *shared.ServerConfig, log *shared.Logger) ([][]byte, *rsa.PrivateKey, error) {
	if cfg.CertFile != "" {
		log.Info("loading certificate",
			zap.String("cert_file", cfg.CertFile), zap.String("key_file", cfg.KeyFile))
		return shared.LoadCertificate(cfg.CertFile, cfg.KeyFile)
	}
	log.Info("generating self-signed development certificate",
		zap.String("common_name", cfg.CertCommonName))
	return shared.GenerateSelfSigned(cfg.CertCommonName)
}
