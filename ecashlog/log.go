// Package ecashlog centralizes log backend setup so every package in this
// module can hold its own btclog.Logger (one per subsystem) while the
// backend itself — where logs go, and at what rotation policy — is
// configured once, from cmd/ecash-issuerd or cmd/ecash-wallet.
//
// This mirrors lnd's own log.go: a shared btclog.Backend, a registry of
// subsystem loggers keyed by a short tag, and a SetLogLevel helper the
// binaries call after loading their config (the LOG_LEVEL env var).
package ecashlog

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags. Each ecash package registers under one of these via
// SubLogger so operators can tune verbosity per component.
const (
	SubsystemBignum      = "BIGN"
	SubsystemBlind       = "BLND"
	SubsystemToken       = "TOKN"
	SubsystemIssuer      = "ISSR"
	SubsystemWalletCore  = "WLTC"
	SubsystemSpentSet    = "SPNT"
	SubsystemLedger      = "LDGR"
	SubsystemRedemption  = "RDMP"
	SubsystemAPI         = "API "
	SubsystemWalletStore = "WSTR"
	SubsystemServer      = "SRVR"
	SubsystemWallet      = "WALT"
)

// backendWriter is the single writer the shared backend writes through, so
// InitBackend can redirect output for loggers that packages already hold.
type backendWriter struct{ w io.Writer }

func (b *backendWriter) Write(p []byte) (int, error) { return b.w.Write(p) }

var logOutput = &backendWriter{w: io.Discard}

var backendLog = btclog.NewBackend(logOutput)

// registry holds every subsystem logger that has been minted so far, so
// SetLogLevel can retroactively change all of their levels at once.
var registry = make(map[string]btclog.Logger)

// SubLogger returns the logger for the given subsystem tag, creating it
// (backed by the current backend) on first use.
func SubLogger(tag string) btclog.Logger {
	if l, ok := registry[tag]; ok {
		return l
	}
	l := backendLog.Logger(tag)
	registry[tag] = l
	return l
}

// InitBackend points every SubLogger write at w (typically
// io.MultiWriter(os.Stdout, rotator)), including loggers minted before the
// call. It is meant to be called once at startup, before logging begins.
func InitBackend(w io.Writer) {
	logOutput.w = w
}

// InitLogRotator opens (creating if needed) a rotating log file at logFile,
// matching the teacher's use of jrick/logrotate for its own log file.
// Writes also go to stdout.
func InitLogRotator(logFile string, maxSizeMB, maxFiles int) (*rotator.Rotator, error) {
	r, err := rotator.New(logFile, int64(maxSizeMB)*1024, false, maxFiles)
	if err != nil {
		return nil, err
	}
	InitBackend(io.MultiWriter(os.Stdout, r))
	return r, nil
}

// SetLogLevel sets the level of a single subsystem by tag, or every
// registered subsystem when tag is "all".
func SetLogLevel(tag, levelStr string) {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return
	}
	if tag == "all" {
		for _, l := range registry {
			l.SetLevel(level)
		}
		return
	}
	if l, ok := registry[tag]; ok {
		l.SetLevel(level)
	}
}
