package realtime

import (
	"log"
	"time"
)

// HeartbeatMonitor evicts sessions whose last heartbeat is older than
// the timeout. Transport-level disconnects are not always observable,
// so this scan is the sole authority for declaring a connection dead
// absent an explicit disconnect.
type HeartbeatMonitor struct {
	log      *log.Logger
	gw       *Gateway
	interval time.Duration
	timeout  time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewHeartbeatMonitor(logger *log.Logger, gw *Gateway, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		log:      logger,
		gw:       gw,
		interval: interval,
		timeout:  timeout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (hm *HeartbeatMonitor) Run() {
	ticker := time.NewTicker(hm.interval)
	defer func() {
		ticker.Stop()
		close(hm.done)
	}()

	for {
		select {
		case <-ticker.C:
			hm.sweep()
		case <-hm.stop:
			return
		}
	}
}

// sweep evicts every stale session through the same cleanup path as an
// explicit disconnect.
func (hm *HeartbeatMonitor) sweep() {
	for _, s := range hm.gw.registry.Stale(hm.timeout) {
		hm.log.Printf("evicting session %q for user %q: no heartbeat since %s",
			s.id, s.user.Username, s.LastHeartbeat().Format(time.RFC3339))
		hm.gw.Disconnect(s.id)
	}
}

func (hm *HeartbeatMonitor) Stop() {
	close(hm.stop)
	<-hm.done
}
