package operator

import "fmt"

// Counters summarize what happened to the processed tuples.
type Counters struct {
	New            int64 `json:"new_citations_added"`
	AlreadyPresent int64 `json:"citations_already_present"`
	InvalidIDs     int64 `json:"error_in_ids_existence"`
}

// Add returns the sum of two counter sets.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		New:            c.New + o.New,
		AlreadyPresent: c.AlreadyPresent + o.AlreadyPresent,
		InvalidIDs:     c.InvalidIDs + o.InvalidIDs,
	}
}

// Sub returns the difference of two counter sets.
func (c Counters) Sub(o Counters) Counters {
	return Counters{
		New:            c.New - o.New,
		AlreadyPresent: c.AlreadyPresent - o.AlreadyPresent,
		InvalidIDs:     c.InvalidIDs - o.InvalidIDs,
	}
}

func (c Counters) Total() int64 {
	return c.New + c.AlreadyPresent + c.InvalidIDs
}

// String formats the counters as the triple reported at the end of a run.
func (c Counters) String() string {
	return fmt.Sprintf("new_citations_added=%d citations_already_present=%d error_in_ids_existence=%d",
		c.New, c.AlreadyPresent, c.InvalidIDs)
}
