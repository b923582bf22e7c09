package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

const (
	envMnemonic     = "RELAYER_MNEMONIC"
	envOwnerKey     = "RELAYER_OWNER_KEY"
	envSlackWebhook = "SLACK_WEBHOOK_URL"
)

type CLIContext struct {
	Ctx    context.Context
	Logger logger.Logger
}

var cli struct {
	Verbose bool   `help:"Set logging to verbose." default:"false" short:"v"`
	EnvFile string `name:"env-file" help:"Optional dotenv file holding the secrets." default:".env" type:"path"`
	Run     Run    `cmd:"" name:"run" help:"Run the relayer node."`
	Derive  Derive `cmd:"" name:"derive" help:"Print the relayer addresses derived from the mnemonic."`
	Submit  Submit `cmd:"" name:"submit" help:"Publish a transaction request to a chain queue."`
}

func main() {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, syscall.SIGTERM, syscall.SIGINT)
	ctx, cancel := context.WithCancel(context.Background())
	go loopSignal(ctx, cancel, signalC)

	kongCtx := kong.Parse(&cli)

	if _, err := os.Stat(cli.EnvFile); err == nil {
		kongCtx.FatalIfErrorf(godotenv.Load(cli.EnvFile))
	}

	lggr, err := logger.NewWith(func(cfg *zap.Config) {
		if cli.Verbose {
			cfg.Level.SetLevel(zapcore.DebugLevel)
		}
	})
	kongCtx.FatalIfErrorf(err)

	err = kongCtx.Run(&CLIContext{Ctx: ctx, Logger: lggr})
	kongCtx.FatalIfErrorf(err)
}

func loopSignal(ctx context.Context, cancel context.CancelFunc, signalC <-chan os.Signal) {
	defer cancel()
	select {
	case <-ctx.Done():
	case s := <-signalC:
		fmt.Fprintf(os.Stderr, "%s\n", s)
	}
}
