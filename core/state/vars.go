package state

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/josephlewis42/forksh/core/shellerr"
)

// Vars holds shell variables, the export set, positional parameters and the
// special parameters derived from the shell's state.
type Vars struct {
	vars     map[string]string
	exported map[string]bool

	arg0   string
	params []string
	status int
	pid    int
	lastBg int
}

// NewVars creates an empty variable store.
func NewVars() *Vars {
	return &Vars{
		vars:     make(map[string]string),
		exported: make(map[string]bool),
	}
}

// NewVarsFromEnviron creates a store with every entry of environ exported.
func NewVarsFromEnviron(environ []string) *Vars {
	v := NewVars()
	for _, e := range environ {
		key, value := SplitEnv(e)
		if key == "" {
			continue
		}
		v.Export(key, value)
	}
	return v
}

// SplitEnv splits a "key=value" entry. A missing "=" yields an empty value.
func SplitEnv(e string) (key, value string) {
	split := strings.SplitN(e, "=", 2)
	key = split[0]
	if len(split) > 1 {
		value = split[1]
	}
	return key, value
}

// Lookup resolves a variable or special parameter.
func (v *Vars) Lookup(name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(v.status), true
	case "$":
		return strconv.Itoa(v.pid), true
	case "!":
		if v.lastBg == 0 {
			return "", false
		}
		return strconv.Itoa(v.lastBg), true
	case "#":
		return strconv.Itoa(len(v.params)), true
	case "@", "*":
		return strings.Join(v.params, " "), true
	case "0":
		return v.arg0, true
	}

	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		if n > len(v.params) {
			return "", false
		}
		return v.params[n-1], true
	}

	val, ok := v.vars[name]
	return val, ok
}

// Get returns the value of name, or "" if unset.
func (v *Vars) Get(name string) string {
	val, _ := v.Lookup(name)
	return val
}

// Set sets a shell variable. Exported variables stay exported.
func (v *Vars) Set(name, value string) {
	v.vars[name] = value
}

// Export sets a variable and marks it for child environments.
func (v *Vars) Export(name, value string) {
	v.vars[name] = value
	v.exported[name] = true
}

// MarkExported exports name with its current value, creating it empty if
// unset.
func (v *Vars) MarkExported(name string) {
	v.Export(name, v.vars[name])
}

// Unexport keeps name as a shell-local variable.
func (v *Vars) Unexport(name string) {
	delete(v.exported, name)
}

// IsExported reports whether name is in the export set.
func (v *Vars) IsExported(name string) bool {
	return v.exported[name]
}

// Unset removes a variable entirely.
func (v *Vars) Unset(name string) {
	delete(v.vars, name)
	delete(v.exported, name)
}

// Names returns every variable name, sorted.
func (v *Vars) Names() []string {
	names := make([]string, 0, len(v.vars))
	for name := range v.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Environ returns the exported variables as sorted "key=value" entries.
func (v *Vars) Environ() []string {
	env := make([]string, 0, len(v.exported))
	for name := range v.exported {
		env = append(env, fmt.Sprintf("%s=%s", name, v.vars[name]))
	}
	sort.Strings(env)
	return env
}

// Status is the value of $?.
func (v *Vars) Status() int {
	return v.status
}

// SetStatus sets $?.
func (v *Vars) SetStatus(status int) {
	v.status = status
}

// Pid is the value of $$.
func (v *Vars) Pid() int {
	return v.pid
}

// SetPid sets $$.
func (v *Vars) SetPid(pid int) {
	v.pid = pid
}

// SetLastBackground sets $!.
func (v *Vars) SetLastBackground(pid int) {
	v.lastBg = pid
}

// Arg0 is the value of $0.
func (v *Vars) Arg0() string {
	return v.arg0
}

// SetArg0 sets $0.
func (v *Vars) SetArg0(arg0 string) {
	v.arg0 = arg0
}

// Params returns a copy of the positional parameters.
func (v *Vars) Params() []string {
	return append([]string(nil), v.params...)
}

// SetParams replaces the positional parameters.
func (v *Vars) SetParams(params []string) {
	v.params = append([]string(nil), params...)
}

// Shift drops the first n positional parameters.
func (v *Vars) Shift(n int) error {
	if n < 0 || n > len(v.params) {
		return shellerr.New(shellerr.Syntax, "shift: %d: shift count out of range", n)
	}
	v.params = v.params[n:]
	return nil
}

// Clone returns a deep copy.
func (v *Vars) Clone() *Vars {
	out := *v
	out.vars = make(map[string]string, len(v.vars))
	for k, val := range v.vars {
		out.vars[k] = val
	}
	out.exported = make(map[string]bool, len(v.exported))
	for k := range v.exported {
		out.exported[k] = true
	}
	out.params = v.Params()
	return &out
}
