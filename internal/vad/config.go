// Package vad turns a stream of audio.Frame values into voice-activity
// events and finalized utterances, generalizing the teacher's single
// RMS-threshold VAD (pkg/orchestrator/vad.go RMSVAD) into the 0-3
// aggressiveness tiers and preroll/skip-initial semantics spec.md requires.
package vad

// Aggressiveness selects how eagerly the classifier treats a frame as
// voiced. Higher values require more energy before classifying speech,
// trading false positives for missed soft speech.
type Aggressiveness int

const (
	Aggressiveness0 Aggressiveness = iota
	Aggressiveness1
	Aggressiveness2
	Aggressiveness3
)

// Config mirrors spec.md's VadConfig data model.
type Config struct {
	Aggressiveness Aggressiveness
	SilenceMS      int
	MinDurationMS  int
	SkipInitialMS  int
}

// DefaultConfig returns sane defaults matching common dictation cadence.
func DefaultConfig() Config {
	return Config{
		Aggressiveness: Aggressiveness2,
		SilenceMS:      500,
		MinDurationMS:  250,
		SkipInitialMS:  100,
	}
}

// thresholds maps aggressiveness tiers to an RMS energy threshold (in
// [-1,1]-normalized sample units) and the number of consecutive voiced
// frames required to confirm speech start. Grounded on the teacher's
// RMSVAD.minConfirmed hysteresis, generalized across four tiers: higher
// aggressiveness demands both more energy and a longer confirmation run.
var thresholds = [4]struct {
	energy       float64
	minConfirmed int
}{
	{energy: 0.01, minConfirmed: 2},
	{energy: 0.02, minConfirmed: 3},
	{energy: 0.035, minConfirmed: 4},
	{energy: 0.06, minConfirmed: 5},
}

func (c Config) threshold() float64 {
	return thresholds[c.Aggressiveness].energy
}

func (c Config) minConfirmed() int {
	return thresholds[c.Aggressiveness].minConfirmed
}
