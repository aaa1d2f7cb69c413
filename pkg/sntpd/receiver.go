package sntpd

import (
	"errors"
	"net"
	"time"
)

// receiveLoop is the single socket reader. Each datagram is classified,
// stamped with its arrival time and handed to the queue; the loop itself
// never replies. Transient read errors keep the loop alive, only a closed
// socket or a stop signal ends it.
func (s *Server) receiveLoop(conn *net.UDPConn, queue *requestQueue, stopCh chan struct{}) {
	defer s.recvWG.Done()

	buf := make([]byte, 1024)
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		// The deadline is only there to observe stopCh periodically.
		_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.debugf("receive error: %v", err)
			continue
		}

		receivedAt := s.cfg.Clock.Now()

		clientIP := ""
		if raddr != nil {
			clientIP = raddr.IP.String()
		}
		s.metrics.incRequest(clientIP, receivedAt)
		s.prom.recordReceived()

		if !s.limiter.allow(clientIP, time.Now()) {
			s.dropAtReceive(raddr, receivedAt, "rate_limited")
			continue
		}

		pkt, status := ParseRequest(buf[:n])
		if status == RequestMalformed {
			s.infof("short request from %s (%d bytes)", clientIP, n)
		} else {
			s.debugf("request from %s (mode %d)", clientIP, pkt.Mode)
		}

		it := queueItem{
			pkt:        pkt,
			status:     status,
			rawLen:     n,
			addr:       raddr,
			receivedAt: receivedAt,
		}
		if !queue.push(it) {
			s.dropAtReceive(raddr, receivedAt, "queue_full")
			continue
		}
		s.prom.setQueueDepth(queue.depth())
	}
}

// dropAtReceive records a request that never reached the worker pool.
func (s *Server) dropAtReceive(raddr *net.UDPAddr, at time.Time, reason string) {
	ev := RequestEvent{
		At:      at,
		Verdict: "dropped",
		Error:   reason,
	}
	if raddr != nil {
		ev.ClientAddr = raddr.String()
		ev.ClientIP = raddr.IP.String()
		ev.ClientPort = raddr.Port
	}
	s.metrics.incDropped()
	s.prom.recordDropped(reason)
	s.hub.publish(ev)
}
