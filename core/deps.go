package core

import "pkt.systems/pslog"

// ServiceDeps captures dependencies for the core service. Terminal and
// Driver are required; EventSink and Logger are optional.
type ServiceDeps struct {
	Terminal  Terminal
	Driver    Driver
	EventSink EventSink
	Logger    pslog.Logger
}
