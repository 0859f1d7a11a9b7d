// Command btc08ctl is a standalone harness for the BTC08 chain driver
// core: it parses the CLI surface of spec.md §6, brings up one chain
// (against real hardware or, with --test-mode, the simulated chain of
// internal/testmode), and drives its scanwork loop, logging progress the
// way a framework's device-table scanwork caller would.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/btc08/chaindriver/internal/adcport"
	"github.com/btc08/chaindriver/internal/chain"
	"github.com/btc08/chaindriver/internal/config"
	"github.com/btc08/chaindriver/internal/devicetable"
	"github.com/btc08/chaindriver/internal/gpioport"
	"github.com/btc08/chaindriver/internal/testmode"
	"github.com/btc08/chaindriver/internal/transport"
	"github.com/btc08/chaindriver/internal/work"
)

// noopFramework is a stand-in upstream collaborator (spec.md §1 "the
// outer miner framework... is out of scope"): it never has work to hand
// out and discards completions, enough to exercise init and the idle
// poll loop.
type noopFramework struct{ logger *log.Logger }

func (n noopFramework) Dequeue(int) []*work.Item { return nil }
func (n noopFramework) Completed(*work.Item, int) {}
func (n noopFramework) SubmitNonce(it *work.Item, micro uint8, nonce uint32, header [128]byte) bool {
	n.logger.Info("nonce submitted", "item", it.ID, "micro", micro, "nonce", fmt.Sprintf("%08x", nonce), "version", fmt.Sprintf("%x", header[0:4]))
	return true
}

func main() {
	logger := log.New(os.Stderr)
	logger.SetLevel(log.InfoLevel)

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		logger.Fatal("parse flags", "err", err)
	}
	if cfg.DumpTraffic {
		logger.SetLevel(log.DebugLevel)
	}

	var bus transport.Bus
	var gp *gpioport.Port
	var sim *testmode.Chain

	if cfg.TestMode {
		scn := testmode.FPGAScenario()
		sim, err = testmode.Open(scn)
		if err != nil {
			logger.Fatal("open simulated chain", "err", err)
		}
		go func() {
			if err := sim.Run(); err != nil {
				logger.Error("simulated chain responder exited", "err", err)
			}
		}()
		bus = sim.Bus()
	} else {
		device := cfg.SPIDevice
		if device == "auto" {
			found, derr := transport.DiscoverSPIDevices()
			if derr != nil || len(found) == 0 {
				logger.Fatal("discover spi devices", "err", derr)
			}
			device = found[0]
			logger.Info("discovered spi device", "device", device)
		}
		bus, err = transport.OpenSPIDevBus(device, cfg.SPIClockKHz, transport.FastASICKHz)
		if err != nil {
			logger.Fatal("open spi bus", "err", err)
		}
		gp, err = gpioport.Open(gpioport.Lines{ChipName: "gpiochip0", GNOffset: 0, OONOffset: 1, ResetOffset: 2})
		if err != nil {
			logger.Fatal("open gpio port", "err", err)
		}
	}
	defer bus.Close()
	if gp != nil {
		defer gp.Close()
	}
	if sim != nil {
		defer sim.Close()
	}

	fw := noopFramework{logger: logger}
	c := chain.New(0, cfg, bus, gp, fw, logger)

	if adc, aerr := adcport.Open(cfg.ADCPath); aerr != nil {
		logger.Warn("adc unavailable, temperature monitoring disabled", "err", aerr)
	} else {
		c.AttachADC(adc, adcport.Band{MinMilliVolts: cfg.ADCMinMV, MaxMilliVolts: cfg.ADCMaxMV})
	}

	golden := chain.DefaultGoldenVector()
	entry := devicetable.New(c, golden)

	if !entry.Detect() {
		logger.Fatal("chain init failed")
	}
	logger.Info("chain ready")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			logger.Info("shutting down")
			return
		case <-ticker.C:
			hashes, err := entry.ScanWork()
			if err != nil {
				logger.Error("scanwork", "err", err)
			}
			if hashes > 0 {
				logger.Debug("scanwork progress", "hashes", hashes)
			}
			if entry.Stats().Disabled {
				logger.Fatal("chain disabled, exiting")
			}
		}
	}
}
