//go:build rp2040

// flashrover-uart serves the external flash over UART0 using the framed
// serial protocol.
package main

import (
	"context"

	"flashrover-go/internal/platform"
	"flashrover-go/power"
	"flashrover-go/services/serial"
)

const baud = 115200

func main() {
	pm := power.NewManager(platform.NewController())

	// Held for the life of the program; main never returns.
	pm.AcquirePeripheral(power.PeriphUART0)
	port := platform.SerialPort(baud)
	println("[main] flashrover-uart boot")

	var flash serial.Flash
	dev, err := platform.OpenFlash(pm, platform.Board())
	if err != nil {
		println("[main] spi unavailable:", err.Error())
	} else {
		flash = dev
	}

	svc := serial.New(port, flash)
	if err := svc.Run(context.Background()); err != nil {
		println("[main] serial stopped:", err.Error())
	}
	for {
	}
}
