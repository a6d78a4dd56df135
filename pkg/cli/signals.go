package cli

import (
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignal returns a channel that delivers the first SIGINT or
// SIGTERM sent to the process. After the first signal, delivery is reset to
// the default disposition so a second interrupt kills a gateway stuck in
// graceful shutdown.
func ShutdownSignal() <-chan os.Signal {
	raw := make(chan os.Signal, 1)
	signal.Notify(raw, os.Interrupt, syscall.SIGTERM)

	out := make(chan os.Signal, 1)
	go func() {
		sig := <-raw
		signal.Stop(raw)
		out <- sig
	}()
	return out
}
