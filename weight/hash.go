package weight

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/otree/internal/hash"
)

// Hash derives a row's weight from its indexed column values.
//
// The hash is seeded so that distinct revisions of the same table produce
// uncorrelated samples. Values are folded through a type-tagged encoding
// so that e.g. int64(1) and "1" never collide by construction.
func Hash(seed uint32, values ...any) Weight {
	h := hash.NewCRC32C()

	var buf [9]byte
	binary.LittleEndian.PutUint32(buf[:4], seed)
	h.Write(buf[:4])

	for _, v := range values {
		switch x := v.(type) {
		case nil:
			buf[0] = 'n'
			h.Write(buf[:1])
		case int:
			buf[0] = 'i'
			binary.LittleEndian.PutUint64(buf[1:9], uint64(x))
			h.Write(buf[:9])
		case int32:
			buf[0] = 'i'
			binary.LittleEndian.PutUint64(buf[1:9], uint64(x))
			h.Write(buf[:9])
		case int64:
			buf[0] = 'i'
			binary.LittleEndian.PutUint64(buf[1:9], uint64(x))
			h.Write(buf[:9])
		case float32:
			buf[0] = 'f'
			binary.LittleEndian.PutUint64(buf[1:9], math.Float64bits(float64(x)))
			h.Write(buf[:9])
		case float64:
			buf[0] = 'f'
			binary.LittleEndian.PutUint64(buf[1:9], math.Float64bits(x))
			h.Write(buf[:9])
		case bool:
			buf[0] = 'b'
			if x {
				buf[1] = 1
			} else {
				buf[1] = 0
			}
			h.Write(buf[:2])
		case string:
			buf[0] = 's'
			binary.LittleEndian.PutUint64(buf[1:9], uint64(len(x)))
			h.Write(buf[:9])
			h.Write([]byte(x))
		default:
			// Unknown types hash by their formatted representation.
			s := stringify(x)
			buf[0] = '?'
			h.Write(buf[:1])
			h.Write([]byte(s))
		}
	}

	return Weight(int32(h.Sum32()))
}

func stringify(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
