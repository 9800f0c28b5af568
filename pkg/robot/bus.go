package robot

import (
	"context"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
)

// DefaultBaudRate is the factory baud rate of STS servos.
const DefaultBaudRate = 1_000_000

// Transport is the request/response link to the servos of one arm.
type Transport interface {
	// Position queries the present raw position of a single servo.
	Position(ctx context.Context, id int) (int, error)
	// SetPositions writes goal positions, keyed by servo ID.
	SetPositions(ctx context.Context, raw map[int]int) error
	// SetTorque enables or disables torque on all servos.
	SetTorque(ctx context.Context, enable bool) error
	Close() error
}

// BusTransport implements Transport over a feetech serial bus.
type BusTransport struct {
	bus    *feetech.Bus
	all    *feetech.ServoGroup
	single map[int]*feetech.ServoGroup
}

// OpenBus opens the serial bus on port and prepares one query group per ID.
func OpenBus(port string, baudRate int, timeout time.Duration, ids []int) (*BusTransport, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open bus %s", port)
	}

	single := make(map[int]*feetech.ServoGroup, len(ids))
	for _, id := range ids {
		single[id] = feetech.NewServoGroupByIDs(bus, id)
	}

	return &BusTransport{
		bus:    bus,
		all:    feetech.NewServoGroupByIDs(bus, ids...),
		single: single,
	}, nil
}

// Position issues a read for one servo.
func (t *BusTransport) Position(ctx context.Context, id int) (int, error) {
	group, ok := t.single[id]
	if !ok {
		return 0, errors.Errorf("servo %d not on this bus", id)
	}
	positions, err := group.Positions(ctx)
	if err != nil {
		return 0, err
	}
	raw, ok := positions[id]
	if !ok {
		return 0, errors.Errorf("servo %d: no position in response", id)
	}
	return raw, nil
}

// SetPositions writes all goals with a single sync write.
func (t *BusTransport) SetPositions(ctx context.Context, raw map[int]int) error {
	goals := make(feetech.PositionMap, len(raw))
	for id, pos := range raw {
		goals[id] = pos
	}
	return t.all.SetPositions(ctx, goals)
}

// SetTorque toggles torque on every servo of the arm.
func (t *BusTransport) SetTorque(ctx context.Context, enable bool) error {
	if enable {
		return t.all.EnableAll(ctx)
	}
	return t.all.DisableAll(ctx)
}

// Close closes the serial bus.
func (t *BusTransport) Close() error {
	return t.bus.Close()
}
