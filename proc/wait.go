package proc

import "kernelcore/defs"

// Waitpid implements sys_waitpid. Scans the caller's
// children for a matching pid under the caller's lock (ECHILD if
// absent), then — parent-before-child ordering — takes the child's
// lock and blocks on its wait condition until the child has exited.
// Removes the child from the table and from the parent's children list
// once its status has been collected.
func (p *Proc) Waitpid(t *Table, pid defs.Pid_t, options int) (defs.Pid_t, int, defs.Err_t) {
	if options != 0 {
		return 0, 0, -defs.EINVAL
	}

	p.mu.Lock()
	var child *Proc
	for _, c := range p.children {
		if c.Pid_ == pid {
			child = c
			break
		}
	}
	p.mu.Unlock()
	if child == nil {
		return 0, 0, -defs.ECHILD
	}

	child.mu.Lock()
	for !child.exited {
		child.waitCond.Wait()
	}
	status := child.exitStatus
	child.mu.Unlock()

	t.remove(child)
	p.mu.Lock()
	for i, c := range p.children {
		if c == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	return pid, status, 0
}
