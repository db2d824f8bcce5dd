package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/microsoft/PackageUploader-sub002/errkind"
)

func main() {
	logger := log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(logger).ExecuteContext(ctx)
	stop()

	if err != nil {
		logger.Errorf("%s", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch errkind.KindOf(err) {
	case errkind.Config:
		return 2
	case errkind.NotFound:
		return 3
	case errkind.ProcessingFailed, errkind.ValidationRejected:
		return 4
	case errkind.ProcessingTimeout:
		return 5
	default:
		return 1
	}
}
