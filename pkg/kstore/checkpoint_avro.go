package kstore

import (
	"fmt"
	"os"

	"github.com/linkedin/goavro/v2"

	"github.com/madara-go/karl/pkg/krecord"
)

// avroCheckpointSchema mirrors the record-payload wire entry (§3.4) as
// an Avro record so checkpoints can be archived alongside other
// Avro-encoded telemetry without a bespoke binary reader.
const avroCheckpointSchema = `{
  "type": "record",
  "name": "KarlCheckpointEntry",
  "fields": [
    {"name": "name", "type": "string"},
    {"name": "type", "type": "int"},
    {"name": "intValues", "type": {"type": "array", "items": "long"}},
    {"name": "doubleValues", "type": {"type": "array", "items": "double"}},
    {"name": "text", "type": "string"},
    {"name": "binary", "type": "bytes"},
    {"name": "clock", "type": "long"},
    {"name": "quality", "type": "long"}
  ]
}`

// SaveContextAvro writes the store as Avro Object Container File
// records, one per live name, using fields wide enough to hold any
// Type variant. This is an alternate to the binary §6.5 format for
// deployments that already archive other state as Avro.
func (s *Store) SaveContextAvro(path string) (err error) {
	codec, err := goavro.NewCodec(avroCheckpointSchema)
	if err != nil {
		return fmt.Errorf("kstore: avro codec: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kstore: avro save: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               f,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("kstore: avro writer: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]interface{}, 0, len(s.names))
	for name, sl := range s.names {
		if !sl.live {
			continue
		}
		records = append(records, avroEncodeRecord(name, sl.rec))
	}
	return ocf.Append(records)
}

// LoadContextAvro replaces the store's contents from an Avro OCF
// checkpoint written by SaveContextAvro.
func (s *Store) LoadContextAvro(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("kstore: avro load: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	ocf, err := goavro.NewOCFReader(f)
	if err != nil {
		return fmt.Errorf("kstore: avro reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = make(map[string]*slot)
	s.globals = make(map[string]struct{})
	s.locals = make(map[string]struct{})

	for ocf.Scan() {
		datum, derr := ocf.Read()
		if derr != nil {
			return fmt.Errorf("kstore: avro read: %w", derr)
		}
		name, rec, derr := avroDecodeRecord(datum)
		if derr != nil {
			return derr
		}
		s.names[name] = &slot{rec: rec, live: true}
	}
	return ocf.Err()
}

func avroEncodeRecord(name string, rec *krecord.Record) map[string]interface{} {
	var ints []int64
	var doubles []float64
	switch rec.Type() {
	case krecord.Integer:
		ints = []int64{rec.ToInteger()}
	case krecord.IntegerArray:
		ints = rec.Ints()
	case krecord.Double:
		doubles = []float64{rec.ToDouble()}
	case krecord.DoubleArray:
		doubles = rec.Doubles()
	}
	return map[string]interface{}{
		"name":         name,
		"type":         int32(rec.Type()),
		"intValues":    int64SliceToAny(ints),
		"doubleValues": float64SliceToAny(doubles),
		"text":         rec.ToString(","),
		"binary":       rec.Bytes(),
		"clock":        int64(rec.Clock()),
		"quality":      int64(rec.Quality()),
	}
}

func avroDecodeRecord(datum interface{}) (string, *krecord.Record, error) {
	m, ok := datum.(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("kstore: avro datum has unexpected shape %T", datum)
	}
	name, _ := m["name"].(string)
	typ := krecord.Type(m["type"].(int32))

	var rec *krecord.Record
	switch typ {
	case krecord.Integer:
		vals := anySliceToInt64(m["intValues"])
		if len(vals) > 0 {
			rec = krecord.NewInteger(vals[0])
		} else {
			rec = krecord.NewInteger(0)
		}
	case krecord.IntegerArray:
		rec = krecord.NewIntegerArray(anySliceToInt64(m["intValues"]))
	case krecord.Double:
		vals := anySliceToFloat64(m["doubleValues"])
		if len(vals) > 0 {
			rec = krecord.NewDouble(vals[0])
		} else {
			rec = krecord.NewDouble(0)
		}
	case krecord.DoubleArray:
		rec = krecord.NewDoubleArray(anySliceToFloat64(m["doubleValues"]))
	case krecord.BinaryFile, krecord.ImageJpeg, krecord.Any:
		b, _ := m["binary"].([]byte)
		rec = krecord.NewBinary(typ, b)
	default:
		rec = krecord.NewString(m["text"].(string))
	}

	rec.SetClock(uint64(m["clock"].(int64)))
	rec.SetQuality(uint32(m["quality"].(int64)))
	return name, rec, nil
}

func int64SliceToAny(v []int64) []interface{} {
	out := make([]interface{}, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

func float64SliceToAny(v []float64) []interface{} {
	out := make([]interface{}, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

func anySliceToInt64(v interface{}) []int64 {
	s, _ := v.([]interface{})
	out := make([]int64, len(s))
	for i, x := range s {
		out[i], _ = x.(int64)
	}
	return out
}

func anySliceToFloat64(v interface{}) []float64 {
	s, _ := v.([]interface{})
	out := make([]float64, len(s))
	for i, x := range s {
		out[i], _ = x.(float64)
	}
	return out
}

