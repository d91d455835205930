package model

import "time"

const CommandScanFixtures = "scan_fixtures"

// Command is an out-of-band operator instruction sent over the control channel.
type Command struct {
	Command   string  `json:"command"`
	Timestamp float64 `json:"timestamp"`
}

func NewCommand(name string, at time.Time) Command {
	return Command{
		Command:   name,
		Timestamp: float64(at.Unix()) + float64(at.Nanosecond())/float64(time.Second),
	}
}

func (c Command) Time() time.Time {
	sec := int64(c.Timestamp)
	nsec := int64((c.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
