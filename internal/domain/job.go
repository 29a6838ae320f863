package domain

import (
	"time"
)

// Outcome is the terminal result a print station reports for a claimed job.
type Outcome string

const (
	OutcomePrinted Outcome = "printed"
	OutcomeFailed  Outcome = "failed"
)

// Valid returns true for the outcomes a station may report.
func (o Outcome) Valid() bool {
	return o == OutcomePrinted || o == OutcomeFailed
}

// Claim records which station holds a job and since when.
type Claim struct {
	ClaimedAt time.Time
	ClientID  string
}

// PrintJob is a rendered artifact waiting to be printed by exactly one station.
type PrintJob struct {
	ID        string
	Payload   []byte
	Meta      map[string]any
	CreatedAt time.Time
	Claim     *Claim
	FailCount int
}

// Claimed returns true if a station currently holds the job.
func (j *PrintJob) Claimed() bool {
	return j.Claim != nil
}

// Clone returns a copy safe to hand outside the queue. Payload bytes are
// shared because the queue never mutates them.
func (j *PrintJob) Clone() *PrintJob {
	c := *j
	if j.Claim != nil {
		claim := *j.Claim
		c.Claim = &claim
	}
	if j.Meta != nil {
		c.Meta = make(map[string]any, len(j.Meta))
		for k, v := range j.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}
