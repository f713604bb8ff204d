package sim

// Counter tallies a simulation run.
type Counter struct {
	Ops        int
	Accepted   int
	Rejected   int
	TotalPaise int64
}

// Add records one attempted operation.
func (c *Counter) Add(op Op, accepted bool) {
	c.Ops++
	if accepted {
		c.Accepted++
		c.TotalPaise += int64(op.Amount)
	} else {
		c.Rejected++
	}
}

// VolumeRupees returns the accepted volume in major units.
func (c Counter) VolumeRupees() float64 {
	return float64(c.TotalPaise) / 100
}
