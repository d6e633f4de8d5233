package logging

import "time"

func String(key, value string) Field        { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field   { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }
func Any(key string, value any) Field       { return Field{Key: key, Value: value} }

// Duration renders d in milliseconds so log lines stay numeric
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: float64(d.Microseconds()) / 1000}
}

// Error records err under "error"; a nil error is recorded as null
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Component(name string) Field { return String("component", name) }
func TxID(id string) Field        { return String("tx_id", id) }
func ConnID(id string) Field      { return String("conn_id", id) }
func GroupID(id int) Field        { return Int("group_id", id) }
func RefID(id int) Field          { return Int("ref_id", id) }
func Opcode(op string) Field      { return String("op", op) }
func ErrorKind(kind string) Field { return String("error_kind", kind) }
func NodeID(id uint64) Field      { return Uint64("node_id", id) }
func EdgeID(id uint64) Field      { return Uint64("edge_id", id) }
func Count(n int) Field           { return Int("count", n) }
func Addr(addr string) Field      { return String("addr", addr) }

// Latency is the elapsed time of an operation, in milliseconds
func Latency(d time.Duration) Field { return Duration("latency_ms", d) }
