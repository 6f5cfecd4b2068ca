package kstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/madara-go/karl/pkg/krecord"
)

// ModifiedSet is a drained snapshot of names scheduled for the next
// publish, split by visibility.
type ModifiedSet struct {
	Globals []string
	Locals  []string
}

// ApplyModified exposes and clears the current modified set atomically.
func (s *Store) ApplyModified() ModifiedSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := ModifiedSet{
		Globals: make([]string, 0, len(s.globals)),
		Locals:  make([]string, 0, len(s.locals)),
	}
	for n := range s.globals {
		out.Globals = append(out.Globals, n)
	}
	for n := range s.locals {
		out.Locals = append(out.Locals, n)
	}
	sort.Strings(out.Globals)
	sort.Strings(out.Locals)
	s.globals = make(map[string]struct{})
	s.locals = make(map[string]struct{})
	return out
}

// markModified records name as pending publish without performing a
// write — used by inbound merge when the caller requests rebroadcast.
func (s *Store) markModified(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markModifiedLocked(name)
}

// ToVector enumerates indexed names `prefix{start..end}` (inclusive)
// into a parallel slice of their current records.
func (s *Store) ToVector(prefix string, start, end int) []*krecord.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*krecord.Record, 0, end-start+1)
	for i := start; i <= end; i++ {
		name := prefix + strconv.Itoa(i)
		if sl, ok := s.names[name]; ok && sl.live {
			out = append(out, sl.rec.Clone())
		} else {
			out = append(out, krecord.New())
		}
	}
	return out
}

// ToMap enumerates every live name matching prefix as a literal string
// prefix. A trailing '*' is stripped before matching and matches any
// remainder, across any number of path segments, so "robot.*" and
// "robot." select the same names.
func (s *Store) ToMap(prefix string) map[string]*krecord.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wildcard := strings.HasSuffix(prefix, "*")
	lit := strings.TrimSuffix(prefix, "*")
	out := make(map[string]*krecord.Record)
	for name, sl := range s.names {
		if !sl.live {
			continue
		}
		if wildcard {
			if strings.HasPrefix(name, lit) {
				out[name] = sl.rec.Clone()
			}
		} else if name == prefix || strings.HasPrefix(name, prefix) {
			out[name] = sl.rec.Clone()
		}
	}
	return out
}

// Print expands `{name}` placeholders in template against the store
// and prints the result to standard output, prefixed with the
// krlog-style tag for the given level ("debug", "info", "warn", "error").
func (s *Store) Print(template, level string) {
	expanded := s.expandTemplate(template)
	switch level {
	case "debug":
		fmt.Println("<7>[DEBUG]", expanded)
	case "warn":
		fmt.Println("<4>[WARNING]", expanded)
	case "error":
		fmt.Println("<3>[ERROR]", expanded)
	default:
		fmt.Println("<6>[INFO]", expanded)
	}
}

func (s *Store) expandTemplate(template string) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		if template[i] == '{' {
			if end := strings.IndexByte(template[i:], '}'); end >= 0 {
				name := template[i+1 : i+end]
				b.WriteString(s.Get(name).ToString(","))
				i += end + 1
				continue
			}
		}
		b.WriteByte(template[i])
		i++
	}
	return b.String()
}
