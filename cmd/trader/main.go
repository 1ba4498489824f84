package main

import (
	"context"
	"os"

	"github.com/yanun0323/logs"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logs.Errorf("papertrade failed, err: %+v", err)
		os.Exit(1)
	}
}
