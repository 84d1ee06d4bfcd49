package port

import (
	"github.com/golang/glog"
)

// LogPin is a hal.Pin showing the status LED in the log.
type LogPin struct {
	Name  string
	level bool
	count int
}

// Set implements hal.Pin.
func (p *LogPin) Set(level bool) {
	if level != p.level {
		p.count++
	}
	p.level = level
	if glog.V(2) {
		state := "off"
		if level {
			state = "ON"
		}
		glog.Infof("LED %s %s", p.Name, state)
	}
}

// Level returns the current level.
func (p *LogPin) Level() bool {
	return p.level
}

// Changes counts level changes.
func (p *LogPin) Changes() int {
	return p.count
}
