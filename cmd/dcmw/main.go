package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
)

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Log.WithError(err).Error("dcmw failed")
		os.Exit(1)
	}
}
