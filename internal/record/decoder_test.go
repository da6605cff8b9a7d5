package record

import "math"

// encodeTestRecord builds a record body the way a table-leaf cell would
// store it, for use as Decode() test fixtures. It is test-only scaffolding;
// the package itself never encodes.
func encodeTestRecord(values []interface{}) []byte {
	types := make([]SerialType, len(values))
	bodies := make([][]byte, len(values))

	for i, v := range values {
		switch x := v.(type) {
		case nil:
			types[i] = SerialNull
		case int64:
			switch {
			case x == 0:
				types[i] = SerialZero
			case x == 1:
				types[i] = SerialOne
			case x >= -128 && x <= 127:
				types[i] = SerialInt8
				bodies[i] = []byte{byte(x)}
			case x >= -32768 && x <= 32767:
				types[i] = SerialInt16
				bodies[i] = []byte{byte(x >> 8), byte(x)}
			default:
				types[i] = SerialInt64
				b := make([]byte, 8)
				u := uint64(x)
				for j := 0; j < 8; j++ {
					b[j] = byte(u >> uint(56-8*j))
				}
				bodies[i] = b
			}
		case float64:
			types[i] = SerialFloat64
			bits := math.Float64bits(x)
			b := make([]byte, 8)
			for j := 0; j < 8; j++ {
				b[j] = byte(bits >> uint(56-8*j))
			}
			bodies[i] = b
		case string:
			types[i] = SerialType(13 + 2*len(x))
			bodies[i] = []byte(x)
		case []byte:
			types[i] = SerialType(12 + 2*len(x))
			bodies[i] = x
		}
	}

	headerBuf := make([]byte, 0, 64)
	for _, t := range types {
		b := make([]byte, MaxVarintLen)
		n := PutVarint(b, uint64(t))
		headerBuf = append(headerBuf, b[:n]...)
	}

	hszBuf := make([]byte, MaxVarintLen)
	// headerSize includes its own varint's length - grow until stable.
	headerSize := len(headerBuf) + 1
	for {
		n := PutVarint(hszBuf, uint64(headerSize))
		if n+len(headerBuf) == headerSize {
			break
		}
		headerSize = n + len(headerBuf)
	}
	n := PutVarint(hszBuf, uint64(headerSize))

	out := make([]byte, 0, headerSize+64)
	out = append(out, hszBuf[:n]...)
	out = append(out, headerBuf...)
	for _, b := range bodies {
		out = append(out, b...)
	}
	return out
}
