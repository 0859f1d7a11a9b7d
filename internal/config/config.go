// Package config builds the immutable configuration value passed by
// reference into each chain constructor. There is no process-wide
// mutable config singleton (see DESIGN.md, "Global mutable
// configuration"): Parse returns one Config and everything downstream
// takes it as a plain argument.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config is immutable once returned from Parse or New. Fields are
// exported for read access; there are no setters.
type Config struct {
	SPIDevice    string // e.g. "/dev/spidev0.0"
	SPIClockKHz  int    // bus speed, §4.1 default 2000, min 1200
	PLLMHz       int    // requested PLL frequency
	UDiv         int    // SET_CONTROL udiv field, default 17
	MinCores     int    // minimum surviving cores per chip, default 90% of 206
	MinChips     int    // minimum chips on chain, default 90% of 22
	DisableChips int    // chip_id the core-disable mask is sent to, 0 = broadcast to every chip
	DisableCores int    // num_cores for the core-disable mask
	TestMode     bool   // run against the simulated chain instead of hardware
	DumpTraffic  bool   // log every SPI frame
	ADCPath      string // IIO sysfs scalar path for the chain temperature channel
	ADCMinMV     int    // acceptable temperature band floor, millivolts
	ADCMaxMV     int    // acceptable temperature band ceiling, millivolts
}

const (
	defaultSPIClockKHz = 2000
	defaultPLLMHz      = 650
	defaultUDiv        = 17
	defaultMinCoresPct = 90
	defaultMinChipsPct = 90
	totalCores         = 206
	totalChips         = 22

	defaultADCPath  = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
	defaultADCMinMV = 200
	defaultADCMaxMV = 1600
)

// New returns the default configuration, used by tests and by code paths
// that build a Config without going through the CLI.
func New() Config {
	return Config{
		SPIDevice:   "/dev/spidev0.0",
		SPIClockKHz: defaultSPIClockKHz,
		PLLMHz:      defaultPLLMHz,
		UDiv:        defaultUDiv,
		MinCores:    totalCores * defaultMinCoresPct / 100,
		MinChips:    totalChips * defaultMinChipsPct / 100,
		ADCPath:     defaultADCPath,
		ADCMinMV:    defaultADCMinMV,
		ADCMaxMV:    defaultADCMaxMV,
	}
}

// Parse builds a Config from the recognized CLI options (spec.md §6):
// the spi_clk_khz:pll_mhz:udiv triplet, min_cores, min_chips, test_mode,
// num_chips:num_cores core-disable mask, and the dump-traffic flag.
// Parsing the flag set itself is the only part of this package that
// touches pflag directly; CLI parsing as a whole is a collaborator
// concern (spec.md §1), so Parse is deliberately thin.
func Parse(args []string) (Config, error) {
	fs := pflag.NewFlagSet("btc08ctl", pflag.ContinueOnError)

	spi := fs.StringP("spi", "s", "2000:650:17", "spi_clk_khz:pll_mhz:udiv")
	dev := fs.String("spi-device", "/dev/spidev0.0", "SPI device node")
	minCores := fs.Int("min-cores", 0, "minimum surviving cores per chip (0 = 90% of 206)")
	minChips := fs.Int("min-chips", 0, "minimum chips required on the chain (0 = 90% of 22)")
	disable := fs.String("disable-cores", "", "num_chips:num_cores core-disable mask, e.g. 3:206")
	testMode := fs.Bool("test-mode", false, "drive the simulated chain instead of hardware")
	dump := fs.Bool("dump-traffic", false, "log every SPI frame")
	adcPath := fs.String("adc-path", "", "IIO sysfs scalar path for the chain temperature channel (default: board-standard path)")
	adcMinMV := fs.Int("adc-min-mv", 0, "acceptable temperature band floor, millivolts (0 = default)")
	adcMaxMV := fs.Int("adc-max-mv", 0, "acceptable temperature band ceiling, millivolts (0 = default)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := New()
	cfg.SPIDevice = *dev
	cfg.TestMode = *testMode
	cfg.DumpTraffic = *dump

	var khz, mhz, udiv int
	if _, err := fmt.Sscanf(*spi, "%d:%d:%d", &khz, &mhz, &udiv); err != nil {
		return Config{}, fmt.Errorf("config: invalid --spi triplet %q: %w", *spi, err)
	}
	cfg.SPIClockKHz = khz
	cfg.PLLMHz = mhz
	cfg.UDiv = udiv

	if *minCores > 0 {
		cfg.MinCores = *minCores
	}
	if *minChips > 0 {
		cfg.MinChips = *minChips
	}
	if *disable != "" {
		var chips, cores int
		if _, err := fmt.Sscanf(*disable, "%d:%d", &chips, &cores); err != nil {
			return Config{}, fmt.Errorf("config: invalid --disable-cores %q: %w", *disable, err)
		}
		cfg.DisableChips = chips
		cfg.DisableCores = cores
	}

	if *adcPath != "" {
		cfg.ADCPath = *adcPath
	}
	if *adcMinMV > 0 {
		cfg.ADCMinMV = *adcMinMV
	}
	if *adcMaxMV > 0 {
		cfg.ADCMaxMV = *adcMaxMV
	}

	return cfg, nil
}
