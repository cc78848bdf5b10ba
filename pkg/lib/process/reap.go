package process

import (
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// pidInUse reports whether a live process currently has the given pid.
// While any member of a group is alive its id cannot be handed out again,
// so after the leader is reaped a live process with the leader's pid means
// the old group is gone and the id was reused.
func pidInUse(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// killGroupStragglers makes a best-effort attempt to kill all processes in
// process group pgid. It makes several passes over the list of running
// processes and returns how many signals it sent.
// Note that this is racy: a continually-forking group could outrun it.
func killGroupStragglers(pgid int, sig unix.Signal) int {
	const maxPasses = 3
	total := 0
	for i := 0; i < maxPasses; i++ {
		pids, err := process.Pids()
		if err != nil {
			return total
		}
		n := 0
		for _, pid := range pids {
			pid := int(pid)
			if g, err := unix.Getpgid(pid); err == nil && g == pgid {
				if unix.Kill(pid, sig) == nil {
					n++
				}
			}
		}
		total += n
		// If we didn't find any processes in the group, we're done.
		if n == 0 {
			return total
		}
	}
	return total
}
