// Package destination provides the minimal concrete type satisfying
// tko.Destination. A destination's full representation is out of
// scope for the tracker core; this type carries nothing beyond the
// host key and token the core actually needs, so the demo binary and
// tests have something concrete to hand it.
package destination

import (
	"fmt"

	"github.com/Hamster601/tkotracker/identity"
	"github.com/Hamster601/tkotracker/tko"
)

// Destination is a backend host the router may send requests to.
type Destination struct {
	hostKey string
	token   tko.Token
}

// New mints a fresh identity token from alloc and pairs it with
// host:port to produce a Destination ready to be registered with a
// tko.TrackerMap.
func New(alloc *identity.Allocator, host string, port int) (*Destination, error) {
	token, err := alloc.Next()
	if err != nil {
		return nil, fmt.Errorf("mint destination token: %w", err)
	}
	return &Destination{
		hostKey: fmt.Sprintf("%s:%d", host, port),
		token:   token,
	}, nil
}

// HostKey implements tko.Destination.
func (d *Destination) HostKey() string { return d.hostKey }

// Token implements tko.Destination.
func (d *Destination) Token() tko.Token { return d.token }

// String renders the destination the way logs and CLI output expect.
func (d *Destination) String() string { return d.hostKey }
