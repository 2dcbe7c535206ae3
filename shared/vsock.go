package shared

import (
	"net"

	"github.com/mdlayher/vsock"
)

// ListenVsock opens a vsock listener for enclave-style deployments where the
// TLS host fronts a VM boundary instead of a network interface. The returned
// listener plugs into the same accept loop as TCP.
func ListenVsock(port uint32) (net.Listener, error) {
	return vsock.Listen(port, nil)
}
