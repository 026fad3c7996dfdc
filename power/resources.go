package power

// Domain is a hardware power island.
type Domain uint8

const (
	DomainRFCore Domain = iota
	DomainSerial
	DomainPeriph
	DomainVIMS // flash cache and memory interface
	DomainSysbus
	DomainCPU

	NumDomains
)

var domainNames = [NumDomains]string{
	"rfcore", "serial", "periph", "vims", "sysbus", "cpu",
}

func (d Domain) String() string {
	if d < NumDomains {
		return domainNames[d]
	}
	return "domain?"
}

// Peripheral is a clock-gated block nested under exactly one Domain.
type Peripheral uint8

const (
	PeriphTimer0 Peripheral = iota
	PeriphTimer1
	PeriphTimer2
	PeriphTimer3
	PeriphSSI0
	PeriphSSI1
	PeriphUART0
	PeriphUART1
	PeriphI2C0
	PeriphCrypto
	PeriphTRNG
	PeriphPKA
	PeriphUDMA
	PeriphGPIO
	PeriphI2S

	NumPeripherals
)

var periphNames = [NumPeripherals]string{
	"timer0", "timer1", "timer2", "timer3",
	"ssi0", "ssi1", "uart0", "uart1", "i2c0",
	"crypto", "trng", "pka", "udma", "gpio", "i2s",
}

func (p Peripheral) String() string {
	if p < NumPeripherals {
		return periphNames[p]
	}
	return "periph?"
}

// parents maps every peripheral to the domain that must be powered for it.
var parents = [NumPeripherals]Domain{
	PeriphTimer0: DomainPeriph,
	PeriphTimer1: DomainPeriph,
	PeriphTimer2: DomainPeriph,
	PeriphTimer3: DomainPeriph,
	PeriphSSI0:   DomainSerial,
	PeriphSSI1:   DomainPeriph,
	PeriphUART0:  DomainSerial,
	PeriphUART1:  DomainPeriph,
	PeriphI2C0:   DomainSerial,
	PeriphCrypto: DomainPeriph,
	PeriphTRNG:   DomainPeriph,
	PeriphPKA:    DomainPeriph,
	PeriphUDMA:   DomainPeriph,
	PeriphGPIO:   DomainPeriph,
	PeriphI2S:    DomainPeriph,
}

// ParentOf returns the domain p lives in. ok is false for out-of-range values.
func ParentOf(p Peripheral) (d Domain, ok bool) {
	if p >= NumPeripherals {
		return 0, false
	}
	return parents[p], true
}
