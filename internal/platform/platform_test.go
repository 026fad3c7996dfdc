package platform

import (
	"testing"

	"flashrover-go/config"
	"flashrover-go/errcode"
	"flashrover-go/internal/norsim"
	"flashrover-go/power"
)

func setConf(c config.Conf) { c.Encode(ConfRecord()) }

func TestBoardUsesValidRecord(t *testing.T) {
	t.Cleanup(func() { setConf(config.Conf{}) })

	if b := Board(); b != config.Pico() {
		t.Fatalf("empty record: %+v", b)
	}
	setConf(config.Conf{Valid: 1, MISO: 12, MOSI: 15, CSN: 9, CLK: 14})
	b := Board()
	if b.CS != 9 || b.SPI.Peripheral != power.PeriphSSI1 || b.SPI.Pins.CLK != 14 {
		t.Fatalf("resolved %+v", b)
	}
	setConf(config.Conf{Valid: 1, MISO: 1, MOSI: 15, CSN: 9, CLK: 14})
	if b := Board(); b != config.Pico() {
		t.Fatalf("bad record not ignored: %+v", b)
	}
}

func TestOpenFlashProbesChip(t *testing.T) {
	chip := norsim.New(norsim.W25X40CL)
	UseChip(chip)
	t.Cleanup(func() { UseChip(nil) })

	ctl := NewController()
	pm := power.NewManager(ctl)
	dev, err := OpenFlash(pm, config.Pico())
	if err != nil {
		t.Fatal(err)
	}
	info, ok := dev.Info()
	if !ok || !info.Supported || info.Size != 512<<10 {
		t.Fatalf("info = %+v", info)
	}
	if chip.Configured().Frequency != 4_000_000 {
		t.Fatalf("bus config %+v", chip.Configured())
	}
	if pm.PeripheralCount(power.PeriphSSI0) != 1 || pm.DomainCount(power.DomainSerial) != 1 {
		t.Fatal("transport dependencies not held")
	}
	if ctl.Edges() == 0 {
		t.Fatal("no hardware transitions")
	}
}

func TestOpenFlashRejectsNonSPIPeripheral(t *testing.T) {
	b := config.Pico()
	b.SPI.Peripheral = power.PeriphUART0
	dev, err := OpenFlash(power.NewManager(NewController()), b)
	if dev != nil || errcode.Of(err) != errcode.SPI {
		t.Fatalf("dev=%v err=%v", dev, err)
	}
}
