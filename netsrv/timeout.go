package netsrv

import "time"

func afterAuthTimeout() <-chan time.Time {
	return time.After(AuthTimeout)
}
