//go:build rp2040

// flashrover-fw is the RAM-resident engine loaded by a debug probe. It
// serves external flash commands on the Doorbell at a fixed SRAM address
// and never returns.
package main

import (
	"context"

	"flashrover-go/doorbell"
	"flashrover-go/internal/platform"
	"flashrover-go/power"
	"flashrover-go/services/xflash"
)

func main() {
	println("[main] flashrover boot")

	pm := power.NewManager(platform.NewController())

	var flash xflash.Flash
	dev, err := platform.OpenFlash(pm, platform.Board())
	if err != nil {
		println("[main] spi unavailable:", err.Error())
	} else {
		flash = dev
	}

	srv := doorbell.NewServer(platform.Doorbell())
	svc := xflash.New(srv, flash, platform.Buffer())
	if err := svc.Run(context.Background()); err != nil {
		println("[main] server stopped:", err.Error())
	}
	for {
	}
}
