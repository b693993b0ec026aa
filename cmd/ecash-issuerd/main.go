// Command ecash-issuerd is the institution-side daemon: it signs
// withdrawal requests and redeems tokens through the double-spend
// coordinator, exposing both over the HTTP surface in package api.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/serverconfig"
)

var shutdownChannel = make(chan struct{})

// issuerdMain is the true entry point for ecash-issuerd. A separate
// function from main is required since deferred calls in main's scope
// don't run when os.Exit is called.
func issuerdMain() error {
	cfg, err := serverconfig.Load()
	if err != nil {
		return err
	}

	rotator, err := ecashlog.InitLogRotator(cfg.LogDir+"/ecash-issuerd.log", 10, 3)
	if err != nil {
		return fmt.Errorf("initializing log rotator: %w", err)
	}
	defer rotator.Close()
	ecashlog.SetLogLevel("all", cfg.LogLevel)

	srvLog.Infof("ecash-issuerd starting, institution_id=%s key_id=%s", cfg.InstitutionID, cfg.KeyID)

	srv, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	go interruptListener()

	<-shutdownChannel
	srvLog.Infof("ecash-issuerd shutting down")
	return srv.Stop()
}

// interruptListener waits for SIGINT/SIGTERM and signals shutdownChannel,
// the same interrupt-handler pattern the teacher's own daemon entrypoint
// uses to let deferred cleanup run instead of calling os.Exit directly.
func interruptListener() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	close(shutdownChannel)
}

func main() {
	if err := issuerdMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
