package ingestor

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"

	"github.com/fieldsync/fieldsync/internal/logging"
)

// AdvertiseGateway registers the gateway port under an mDNS/DNS-SD
// service name (SPEC_FULL.md §6 extensions, ingestor.mdns_name),
// so a client on the same network segment can discover the ingestor
// without a hardcoded IP, grounded on brutella/dnssd usage in the pack
// (doismellburning-samoyed). Blocks until ctx is cancelled; callers
// should run it in its own goroutine.
func AdvertiseGateway(ctx context.Context, name string, gatewayPort int, log *logging.Logger) error {
	cfg := dnssd.Config{
		Name: name,
		Type: "_fieldsync-gateway._tcp",
		Port: gatewayPort,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("ingestor: build mdns service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("ingestor: build mdns responder: %w", err)
	}
	if _, err := responder.Add(svc); err != nil {
		return fmt.Errorf("ingestor: add mdns service: %w", err)
	}

	log.Info("mdns: advertising gateway", "name", name, "port", gatewayPort)
	return responder.Respond(ctx)
}
