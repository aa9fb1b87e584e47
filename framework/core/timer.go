package core

import (
	"github.com/fixkme/gokit/framework/config"
	"github.com/fixkme/gokit/timer"
)

// InitTimerModule sizes the process-wide timer queue's worker pool
// from config before anything in the process calls timer.New. Skipping
// this call is fine too: the first timer.New/NewMS/NewUnsigned falls
// back to timer's own default pool size.
func InitTimerModule(conf *config.TimerConfig) error {
	cfg := timer.Config{}
	if conf != nil {
		cfg.PoolSize = conf.TimerPoolSize
	}
	return timer.Init(cfg)
}
