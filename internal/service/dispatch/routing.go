package dispatch

import (
	"github.com/voltgrid/csms/internal/ports"
)

// route pins a command type to its queue routing key and broker priority.
// Session-critical commands ride at 5 so a stop never queues behind bulk
// configuration traffic; the top of the 1-10 range is reserved for the
// inbound charging-lifecycle event stream.
type route struct {
	Key      string
	Priority uint8
}

const (
	priorityBulk    uint8 = 1
	prioritySession uint8 = 5
)

// routingTable is the single source of truth for command routing. Adding a
// command type means adding a row here; there is no dynamic registration.
var routingTable = map[ports.CommandType]route{
	ports.CommandRemoteStart:         {Key: "device.command.remote-start", Priority: prioritySession},
	ports.CommandRemoteStop:          {Key: "device.command.remote-stop", Priority: prioritySession},
	ports.CommandConfigurationChange: {Key: "device.command.configuration", Priority: priorityBulk},
	ports.CommandReset:               {Key: "device.command.reset", Priority: priorityBulk},
}

func routeFor(t ports.CommandType) (route, bool) {
	r, ok := routingTable[t]
	return r, ok
}
