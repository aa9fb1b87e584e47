package ticks

import "time"

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) NowMS() uint32 {
	return uint32(time.Now().UnixMilli())
}

func (realClock) AfterFunc(d time.Duration, f func()) Canceler {
	return realCanceler{time.AfterFunc(d, f)}
}

type realCanceler struct{ t *time.Timer }

func (c realCanceler) Stop() bool { return c.t.Stop() }
