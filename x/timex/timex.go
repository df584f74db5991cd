package timex

import "time"

var base = time.Now()

// NowMicros returns a monotonic microsecond tick truncated to uint32.
// Callers compare ticks by subtraction, so the wrap every ~71.6 minutes
// is harmless.
func NowMicros() uint32 { return uint32(time.Since(base).Microseconds()) }
