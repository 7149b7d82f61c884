package feedgen

import "time"

// Config holds configuration for a generated data set.
type Config struct {
	Counties    int           // Number of counties to generate
	Days        int           // Days of history per county
	End         time.Time     // Date of the newest row
	Seed        int64         // Seed for the value generator
	MissingRate float64       // Share of current-day rows with a blank cases cell
	OutDir      string        // Directory for feed.csv and counties.json; empty skips writing
	Addr        string        // Listen address; empty skips serving
	Timeout     time.Duration // Shutdown timeout for the server
}

// Defaults for Config fields left at their zero value.
const (
	DefaultCounties = 200
	DefaultDays     = 14
	DefaultTimeout  = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Counties <= 0 {
		c.Counties = DefaultCounties
	}
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.End.IsZero() {
		y := time.Now().AddDate(0, 0, -1)
		c.End = time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
