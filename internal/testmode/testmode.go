// Package testmode implements the simulated-chain harness spec.md §6
// calls out implicitly through `test_mode` and the CLI surface: a
// responder that stands in for real silicon on the other end of a
// transport.Bus, so the Chain Controller can be driven and its
// round-trip laws and end-to-end scenarios (spec.md §8) verified
// without a hash board attached.
//
// Grounded on doismellburning/samoyed's src/kiss.go, which tests its
// KISS framing against a virtual serial port opened with
// github.com/creack/pty instead of a real TNC; here the pty's slave end
// stands in for the ASIC chain and the master end is wrapped by
// internal/transport.PipeBus, exactly as kiss.go pairs a pty pair across
// a test and the code under test.
package testmode

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/btc08/chaindriver/internal/codec"
	"github.com/btc08/chaindriver/internal/transport"
)

// Scenario fixes the simulated chain's shape: chip count, class, and
// core count, enough to drive spec.md §8's worked examples.
type Scenario struct {
	NumChips     int
	ASIC         bool
	CoresPerChip int
	HashDepth    uint8
	// GoldenNonce, when non-zero, is returned raw (the driver applies
	// BackCorrect) by READ_RESULT for job_id 1's first micro-job, with
	// READ_JOB_ID reporting the GN bit set — spec.md §8 scenario 2.
	GoldenNonce uint32
	// PLLLockFails, when true, makes READ_PLL never report the lock bit —
	// spec.md §8 scenario 6 (PLL lock timeout zeroes the chip's MHz,
	// disables the chain and fails init).
	PLLLockFails bool
}

// FPGAScenario reproduces spec.md §8 scenario 1: three FPGA chips, 2
// cores each.
func FPGAScenario() Scenario {
	return Scenario{NumChips: 3, ASIC: false, CoresPerChip: 2}
}

// GoldenNonceRaw is the raw, pre-back-correction nonce spec.md §8
// scenario 2 expects a chip to report; internal/pipeline.BackCorrect
// then adds hash_depth*num_cores, reproducing the worked example's
// `0x0D473A59 + hash_depth*num_cores` for any hash-depth/core-count
// combination.
const GoldenNonceRaw uint32 = 0x0D473A59

// Chain pairs a pty and runs the simulated-chip responder loop on its
// slave end. Bus() returns the transport.Bus the real Chain Controller
// should be constructed with.
type Chain struct {
	master *os.File
	slave  *os.File
	bus    transport.Bus
	scn    Scenario
	done   chan struct{}
}

// Open starts a simulated chain for scn and returns it. Call Run in a
// goroutine to begin serving requests, and Close when finished.
func Open(scn Scenario) (*Chain, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, err
	}
	// Put the line discipline in raw mode so frame bytes pass through
	// unmodified: no echo, no line buffering, no control-character handling.
	t, err := unix.IoctlGetTermios(int(slave.Fd()), unix.TCGETS)
	if err == nil {
		t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
		t.Oflag &^= unix.OPOST
		t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
		t.Cflag &^= unix.CSIZE | unix.PARENB
		t.Cflag |= unix.CS8
		t.Cc[unix.VMIN], t.Cc[unix.VTIME] = 1, 0
		err = unix.IoctlSetTermios(int(slave.Fd()), unix.TCSETS, t)
	}
	if err != nil {
		_ = slave.Close()
		_ = master.Close()
		return nil, err
	}
	return &Chain{
		master: master,
		slave:  slave,
		bus:    transport.NewPipeBus(master),
		scn:    scn,
		done:   make(chan struct{}),
	}, nil
}

// Bus returns the transport.Bus backed by this simulated chain.
func (c *Chain) Bus() transport.Bus { return c.bus }

// Close releases both ends of the pty.
func (c *Chain) Close() error {
	close(c.done)
	_ = c.slave.Close()
	return c.master.Close()
}

// Run serves requests on the slave end until Close is called. Intended
// to run in its own goroutine, paired with a Chain Controller driving
// the master end through Bus().
func (c *Chain) Run() error {
	for {
		select {
		case <-c.done:
			return nil
		default:
		}
		opcode, err := readOpcode(c.slave)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		n := frameLen(opcode)
		buf := make([]byte, n)
		buf[0] = byte(opcode)
		if _, err := io.ReadFull(c.slave, buf[1:]); err != nil {
			return err
		}
		resp := c.respond(opcode, buf)
		codec.Invert(resp)
		if _, err := c.slave.Write(resp); err != nil {
			return err
		}
	}
}

func readOpcode(r io.Reader) (codec.Opcode, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return codec.Opcode(b[0]), nil
}

// frameLen mirrors the fixed per-opcode frame lengths internal/codec's
// command constructors build (spec.md §4.2: opcode+chip_id+params+
// response+dummy, aligned to 4). The responder needs it to know how many
// bytes to drain for any given opcode.
func frameLen(op codec.Opcode) int {
	const header, dummy = 2, 2
	raw := func(parm, resp int) int { return align4(header + parm + resp + dummy) }
	switch op {
	case codec.OpReadID, codec.OpReadFeature, codec.OpReadRevision, codec.OpReadPLL, codec.OpReadJobID:
		return raw(0, 4)
	case codec.OpAutoAddress:
		return raw(32, 2)
	case codec.OpReset, codec.OpClearOON:
		return raw(0, 0)
	case codec.OpSetPLLFoutEn, codec.OpSetPLLResetb, codec.OpSetControl:
		return raw(1, 0)
	case codec.OpSetPLLConfig:
		return raw(4, 0)
	case codec.OpWriteParm:
		return raw(codec.WriteParmLen, 0)
	case codec.OpReadParm:
		return raw(0, codec.WriteParmLen)
	case codec.OpWriteTarget:
		return raw(codec.WriteTargetLen, 0)
	case codec.OpWriteNonce:
		return raw(codec.WriteNonceLen, 0)
	case codec.OpSetDisable:
		return raw(codec.MaxCoreBytes, 0)
	case codec.OpRunBist:
		return raw(codec.BISTHashLen, 0)
	case codec.OpReadBist:
		return raw(0, 2)
	case codec.OpRunJob:
		return raw(2, 0)
	case codec.OpReadResult:
		return raw(0, 18)
	default:
		return raw(0, 0)
	}
}

func align4(n int) int { return (n + 3) &^ 3 }

// respond synthesizes a plaintext (pre-invert) response buffer the same
// length as the request, echoing opcode and chip_id at offsets 0 and 1
// per spec.md §4.2.
func (c *Chain) respond(op codec.Opcode, req []byte) []byte {
	resp := make([]byte, len(req))
	resp[0] = byte(op)
	chipID := req[1]
	resp[1] = chipID

	switch op {
	case codec.OpAutoAddress:
		// AUTO_ADDRESS carries a 32-byte zero parameter, so its response
		// starts at headerLen(2)+parmLen(32) = byte 34, not byte 2.
		resp[34] = 0
		resp[35] = byte(c.scn.NumChips)
	case codec.OpReadID:
		resp[5] = chipID
	case codec.OpReadFeature:
		class := uint32(0)
		if c.scn.ASIC {
			class = 5
		}
		binary.BigEndian.PutUint32(resp[2:6], class<<8|uint32(c.scn.HashDepth))
	case codec.OpReadPLL:
		if !c.scn.PLLLockFails {
			resp[3] = 1 << 7
		}
	case codec.OpReadBist:
		resp[2] = 0 // idle
		resp[3] = byte(c.scn.CoresPerChip)
	case codec.OpReadJobID:
		if c.scn.GoldenNonce != 0 {
			resp[3] = 1          // job_id 1
			resp[4] = codec.JobStatusGN
		}
	case codec.OpReadResult:
		if c.scn.GoldenNonce != 0 {
			binary.BigEndian.PutUint32(resp[2:6], c.scn.GoldenNonce)
			resp[19] = 1 // micro_job_id mask, bit0
		}
	}
	return resp
}
