package pipeline

import (
	"fmt"
	"math"

	"minutes/internal/task"
)

// Band is the slice of the 0-100 progress scale owned by one stage.
type Band struct {
	Start int
	End   int
}

// At maps a stage-local fraction (0..1) into the band.
func (b Band) At(fraction float64) int {
	switch {
	case math.IsNaN(fraction) || fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	return b.Start + int(math.Round(fraction*float64(b.End-b.Start)))
}

// Bands assigns a progress band to each stage.
type Bands map[task.Stage]Band

// DefaultBands returns preparing 0-10, transcribing 10-60, generating 60-95,
// completed 100.
func DefaultBands() Bands {
	return Bands{
		task.StagePreparing:    {Start: 0, End: 10},
		task.StageTranscribing: {Start: 10, End: 60},
		task.StageGenerating:   {Start: 60, End: 95},
		task.StageCompleted:    {Start: 100, End: 100},
	}
}

// For returns the band for stage, falling back to the default table.
func (b Bands) For(stage task.Stage) Band {
	if band, ok := b[stage]; ok {
		return band
	}
	return DefaultBands()[stage]
}

// Validate checks that every band lies within 0-100 and that bands never
// move backwards from one stage to the next.
func (b Bands) Validate() error {
	prevEnd := 0
	for stage := task.StagePreparing; stage <= task.StageCompleted; stage++ {
		band := b.For(stage)
		if band.Start < 0 || band.End > 100 || band.Start > band.End {
			return fmt.Errorf("band for %s out of range: %d-%d", stage, band.Start, band.End)
		}
		if band.Start < prevEnd {
			return fmt.Errorf("band for %s starts at %d before previous stage end %d", stage, band.Start, prevEnd)
		}
		prevEnd = band.End
	}
	return nil
}
