package state

import "sort"

// Logic holds user-defined functions and aliases.
type Logic struct {
	funcs   map[string]string
	aliases map[string]string
}

// NewLogic creates empty function and alias tables.
func NewLogic() *Logic {
	return &Logic{
		funcs:   make(map[string]string),
		aliases: make(map[string]string),
	}
}

// SetFunc stores a function body.
func (l *Logic) SetFunc(name, body string) {
	l.funcs[name] = body
}

// Func returns the body of a function.
func (l *Logic) Func(name string) (string, bool) {
	body, ok := l.funcs[name]
	return body, ok
}

// UnsetFunc removes a function.
func (l *Logic) UnsetFunc(name string) {
	delete(l.funcs, name)
}

// SetAlias stores an alias.
func (l *Logic) SetAlias(name, value string) {
	l.aliases[name] = value
}

// Alias returns the value of an alias.
func (l *Logic) Alias(name string) (string, bool) {
	value, ok := l.aliases[name]
	return value, ok
}

// UnsetAlias removes an alias, reporting whether it existed.
func (l *Logic) UnsetAlias(name string) bool {
	_, ok := l.aliases[name]
	delete(l.aliases, name)
	return ok
}

// ClearAliases removes every alias.
func (l *Logic) ClearAliases() {
	l.aliases = make(map[string]string)
}

// AliasNames returns the defined alias names, sorted.
func (l *Logic) AliasNames() []string {
	return sortedKeys(l.aliases)
}

// FuncNames returns the defined function names, sorted.
func (l *Logic) FuncNames() []string {
	return sortedKeys(l.funcs)
}

// Clone returns a deep copy.
func (l *Logic) Clone() *Logic {
	return &Logic{
		funcs:   copyMap(l.funcs),
		aliases: copyMap(l.aliases),
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
