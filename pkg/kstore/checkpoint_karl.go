package kstore

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/madara-go/karl/pkg/krecord"
)

// SaveAsKarl writes the store as a KaRL source file of assignment
// statements (one `name = value;` per live name, sorted for
// reproducible diffs), suitable for replay through the evaluator or
// for human inspection — the text counterpart to the binary and Avro
// checkpoint formats.
func (s *Store) SaveAsKarl(path string) error {
	s.mu.RLock()
	names := make([]string, 0, len(s.names))
	for name, sl := range s.names {
		if sl.live {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		rec := s.names[name].rec
		fmt.Fprintf(&b, "%s = %s;\n", name, karlLiteral(rec))
	}
	s.mu.RUnlock()

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func karlLiteral(rec *krecord.Record) string {
	switch rec.Type() {
	case krecord.Integer:
		return fmt.Sprintf("%d", rec.ToInteger())
	case krecord.Double:
		return fmt.Sprintf("%g", rec.ToDouble())
	case krecord.IntegerArray:
		vals := rec.Ints()
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("%d", v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case krecord.DoubleArray:
		vals := rec.Doubles()
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("%g", v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case krecord.BinaryFile, krecord.ImageJpeg, krecord.Any:
		return fmt.Sprintf("%q", rec.Bytes())
	case krecord.Empty:
		return "0"
	default:
		return fmt.Sprintf("%q", rec.ToString(","))
	}
}
