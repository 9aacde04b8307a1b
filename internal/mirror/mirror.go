// internal/mirror/mirror.go
package mirror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/notecard-handler/internal/status"
)

// endpointClient is the exact contract the mirror uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Plan locates the status block on the endpoint.
type Plan struct {
	Endpoint string
	UnitID   uint8
	BaseSlot uint16
}

// StatusMirror delivers connection snapshots into a Modbus status block.
// It receives a snapshot and writes it verbatim. No interpretation.
type StatusMirror struct {
	plan Plan
	cli  endpointClient

	needFull bool
	last     status.Snapshot
	uidRegs  []uint16
}

// New builds a mirror. The first successful write re-asserts the full block.
func New(plan Plan, cli endpointClient) *StatusMirror {
	return &StatusMirror{
		plan:     plan,
		cli:      cli,
		needFull: true,
		uidRegs:  status.EncodeDeviceUID(""),
	}
}

// SetDeviceUID updates the identity slots. A change forces a full re-assert.
func (m *StatusMirror) SetDeviceUID(uid string) {
	regs := status.EncodeDeviceUID(uid)
	for i := range regs {
		if regs[i] != m.uidRegs[i] {
			m.uidRegs = regs
			m.needFull = true
			return
		}
	}
}

// WriteStatus delivers a snapshot.
// On any write failure, the next successful call will re-assert the full block.
func (m *StatusMirror) WriteStatus(s status.Snapshot) error {
	if m == nil || m.cli == nil {
		return errors.New("status mirror: disabled")
	}

	base := m.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if m.needFull {
		if err := m.cli.WriteRegisters(m.plan.UnitID, base, m.fullBlockRegs(s)); err != nil {
			m.needFull = true
			return fmt.Errorf("status mirror: full block write failed: %w", err)
		}
		m.needFull = false
		m.last = s
		return nil
	}

	var errs []string

	// Slot 0 — state
	if m.last.State != s.State {
		if err := m.cli.WriteRegisters(m.plan.UnitID, base+status.SlotState, []uint16{s.State}); err != nil {
			errs = append(errs, fmt.Sprintf("slot0 state write failed: %v", err))
		} else {
			m.last.State = s.State
		}
	}

	// Slot 1 — connection status byte
	if m.last.Status != s.Status {
		if err := m.cli.WriteRegisters(m.plan.UnitID, base+status.SlotConnectionStatus, []uint16{uint16(s.Status.Encode())}); err != nil {
			errs = append(errs, fmt.Sprintf("slot1 status write failed: %v", err))
		} else {
			m.last.Status = s.Status
		}
	}

	// Slot 2 — seconds in state
	if m.last.SecondsInState != s.SecondsInState {
		if err := m.cli.WriteRegisters(m.plan.UnitID, base+status.SlotSecondsInState, []uint16{s.SecondsInState}); err != nil {
			errs = append(errs, fmt.Sprintf("slot2 seconds write failed: %v", err))
		} else {
			m.last.SecondsInState = s.SecondsInState
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt — re-assert on next success.
		m.needFull = true
		return errors.New("status mirror: " + strings.Join(errs, " | "))
	}

	return nil
}

func (m *StatusMirror) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return m.plan.BaseSlot * status.SlotsPerDevice
}

func (m *StatusMirror) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := status.EncodeBlock(s)

	// Reserved slots stay zero; the UID always lives at the end of the block.
	copy(regs[status.SlotDeviceUIDStart:], m.uidRegs)

	return regs
}
