package sntpd

import (
	"net"
	"time"
)

// workerLoop drains the queue until it is closed. Workers only ever write
// to the socket; reads stay on the receiver, so the two directions never
// contend.
func (s *Server) workerLoop(conn *net.UDPConn, queue *requestQueue, id int) {
	defer s.workWG.Done()

	s.debugf("worker %d started", id)
	for it := range queue.items() {
		s.handle(conn, queue, it, id)
	}
	s.debugf("worker %d stopped", id)
}

func (s *Server) handle(conn *net.UDPConn, queue *requestQueue, it queueItem, id int) {
	start := time.Now()
	s.prom.setQueueDepth(queue.depth())

	ev := RequestEvent{
		At:       it.receivedAt,
		Version:  it.pkt.VN,
		Mode:     it.pkt.Mode,
		Verdict:  it.status.String(),
		WorkerID: id,
	}
	if it.addr != nil {
		ev.ClientAddr = it.addr.String()
		ev.ClientIP = it.addr.IP.String()
		ev.ClientPort = it.addr.Port
	}

	// Malformed and non-client datagrams reach the pool only to be
	// discarded here; SNTP carries no error reply to send instead.
	if it.status != RequestOK {
		ev.Error = "invalid_request"
		ev.ProcessingUSec = time.Since(start).Microseconds()
		s.metrics.incDropped()
		s.prom.recordDropped(it.status.String())
		s.hub.publish(ev)
		return
	}

	if s.cfg.Hook != nil {
		meta := RequestMeta{
			ReceivedAt: it.receivedAt,
			ClientIP:   ev.ClientIP,
			ClientPort: ev.ClientPort,
			RawLen:     it.rawLen,
		}
		if dropReason := s.cfg.Hook(it.pkt, meta); dropReason != "" {
			ev.Error = dropReason
			ev.ProcessingUSec = time.Since(start).Microseconds()
			s.metrics.incDropped()
			s.prom.recordDropped("hook")
			s.hub.publish(ev)
			return
		}
	}

	now := s.cfg.Clock.Now()
	resp := BuildResponse(it.pkt, s.cfg.response(), it.receivedAt, now, s.cfg.Delay)

	if _, err := conn.WriteToUDP(resp.Marshal(), it.addr); err != nil {
		ev.Error = err.Error()
		ev.ProcessingUSec = time.Since(start).Microseconds()
		s.metrics.incDropped()
		s.prom.recordDropped("send_error")
		s.hub.publish(ev)
		return
	}

	ev.Responded = true
	ev.ProcessingUSec = time.Since(start).Microseconds()
	s.metrics.incResponse()
	s.prom.recordReplied(time.Since(start).Seconds())
	s.hub.publish(ev)
}
