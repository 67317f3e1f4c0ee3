package backupengine

// Stage names emitted through Reporter (spec §6, bit-exact strings).
const (
	StageCollecting = "collecting"
	StageDeleted    = "deleted"
)

// Reporter receives one event per processed file (spec §6). RunBackup
// delivers collecting-stage events with processed strictly increasing
// (spec §8 P8); deleted-stage events carry processed=0. total is always 0,
// since the run does not know the total file count upfront. Reporter may be
// nil, in which case events are simply dropped.
type Reporter func(stage string, processed, total int, file string)

func (r Reporter) report(stage string, processed int, file string) {
	if r == nil {
		return
	}

	r(stage, processed, 0, file)
}
