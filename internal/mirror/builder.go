// internal/mirror/builder.go
package mirror

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/notecard-handler/internal/config"
	mmodbus "github.com/tamzrod/notecard-handler/internal/mirror/modbus"
)

// Build connects to the configured endpoint and returns a ready mirror plus
// its closer. Assumes config has already passed validation.
func Build(c cfg.MirrorConfig) (*StatusMirror, func() error, error) {
	if c.Endpoint == "" {
		return nil, nil, errors.New("mirror: endpoint required")
	}

	client, err := mmodbus.NewEndpointClient(mmodbus.Config{
		Endpoint: c.Endpoint,
		UnitID:   c.UnitID,
		Timeout:  time.Duration(c.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	m := New(Plan{
		Endpoint: c.Endpoint,
		UnitID:   c.UnitID,
		BaseSlot: c.BaseSlot,
	}, client)

	return m, client.Close, nil
}
