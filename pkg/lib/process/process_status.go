package process

import (
	"github.com/espressif/esp-bist/pkg/lib"
)

// Status returns a snapshot of the current process status.
func (h *Handle) Status() lib.ProcessStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := lib.ProcessStatus{State: h.state, StartTime: h.start}
	if h.exitCode != nil {
		st.ExitCode = new(int)
		*st.ExitCode = *h.exitCode
	}
	if h.end != nil {
		t := *h.end
		st.EndTime = &t
	}
	return st
}
