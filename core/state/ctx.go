package state

import (
	"os"
	"sort"
)

// Ctx is the descriptor table commands run with.
type Ctx struct {
	fds map[int]*os.File
}

// NewCtx creates a descriptor table with the three standard streams.
func NewCtx(stdin, stdout, stderr *os.File) *Ctx {
	c := &Ctx{fds: make(map[int]*os.File)}
	c.Set(0, stdin)
	c.Set(1, stdout)
	c.Set(2, stderr)
	return c
}

// Fd returns the file bound to fd, or nil.
func (c *Ctx) Fd(fd int) *os.File {
	return c.fds[fd]
}

// Set binds fd to f. A nil f closes the binding.
func (c *Ctx) Set(fd int, f *os.File) {
	if f == nil {
		delete(c.fds, fd)
		return
	}
	c.fds[fd] = f
}

// Unset removes the binding for fd without closing the file.
func (c *Ctx) Unset(fd int) {
	delete(c.fds, fd)
}

func (c *Ctx) Stdin() *os.File  { return c.fds[0] }
func (c *Ctx) Stdout() *os.File { return c.fds[1] }
func (c *Ctx) Stderr() *os.File { return c.fds[2] }

// Fds returns the bound descriptor numbers, sorted.
func (c *Ctx) Fds() []int {
	out := make([]int, 0, len(c.fds))
	for fd := range c.fds {
		out = append(out, fd)
	}
	sort.Ints(out)
	return out
}

// Files returns the table as a slice indexed by descriptor, suitable for
// os.ProcAttr. Unbound descriptors below the highest bound one are nil.
func (c *Ctx) Files() []*os.File {
	fds := c.Fds()
	if len(fds) == 0 {
		return nil
	}
	out := make([]*os.File, fds[len(fds)-1]+1)
	for fd, f := range c.fds {
		out[fd] = f
	}
	return out
}

// Clone returns a copy of the table sharing the underlying files.
func (c *Ctx) Clone() *Ctx {
	out := &Ctx{fds: make(map[int]*os.File, len(c.fds))}
	for fd, f := range c.fds {
		out.fds[fd] = f
	}
	return out
}
