package service

import "time"

// Window is the derived lifecycle state of a test. It is never stored;
// every check recomputes it from the server clock, which is authoritative
// over any client countdown.
type Window string

const (
	WindowUpcoming Window = "UPCOMING"
	WindowActive   Window = "ACTIVE"
	WindowExpired  Window = "EXPIRED"
)

// ClassifyWindow maps an instant onto the test window. The lower bound is
// inclusive and the upper bound exclusive, so there is no instant at which
// a test is both active and expired:
//
//	now <  startAt          -> UPCOMING
//	startAt <= now < endAt  -> ACTIVE
//	now >= endAt            -> EXPIRED
func ClassifyWindow(now, startAt, endAt time.Time) Window {
	if now.Before(startAt) {
		return WindowUpcoming
	}
	if now.Before(endAt) {
		return WindowActive
	}
	return WindowExpired
}
