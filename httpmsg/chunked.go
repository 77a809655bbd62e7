package httpmsg

import "bytes"

// ChunkDecoderState is the chunked transfer-coding decoder used on input,
// mirrored in shape by the encoder used on output. It is a small explicit
// state machine so a Connection can feed it partial reads without blocking.
type ChunkDecoderState uint8

const (
	ChunkAwaitingSize ChunkDecoderState = iota
	ChunkAwaitingData
	ChunkAwaitingDataCRLF
	ChunkAwaitingTrailers
	ChunkDone
)

// ChunkDecoder decodes an incoming chunked body into its data windows.
type ChunkDecoder struct {
	State      ChunkDecoderState
	Remaining  int64 // bytes left in the current chunk's data window
}

// NewChunkDecoder creates a decoder in its initial state.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{State: ChunkAwaitingSize}
}

// Step consumes as much of data as forms complete chunk-framing tokens,
// returning the data bytes decoded (copied into a new slice) and the
// number of input bytes consumed. Reaching the terminating 0-length chunk
// and the end of any trailers is reported by State becoming ChunkDone.
func (d *ChunkDecoder) Step(data []byte) (decoded []byte, consumed int, err error) {
	var out []byte
	for {
		switch d.State {
		case ChunkAwaitingSize:
			line, rest, ok := findLine(data[consumed:])
			if !ok {
				return out, consumed, nil
			}
			size, perr := parseChunkSize(line)
			if perr != nil {
				return out, consumed, ErrChunkFraming
			}
			consumed = len(data) - len(rest)
			if size == 0 {
				d.State = ChunkAwaitingTrailers
				continue
			}
			d.Remaining = size
			d.State = ChunkAwaitingData

		case ChunkAwaitingData:
			avail := int64(len(data) - consumed)
			if avail == 0 {
				return out, consumed, nil
			}
			take := d.Remaining
			if avail < take {
				take = avail
			}
			out = append(out, data[consumed:consumed+int(take)]...)
			consumed += int(take)
			d.Remaining -= take
			if d.Remaining == 0 {
				d.State = ChunkAwaitingDataCRLF
			} else {
				return out, consumed, nil
			}

		case ChunkAwaitingDataCRLF:
			line, rest, ok := findLine(data[consumed:])
			if !ok {
				return out, consumed, nil
			}
			if len(line) != 0 {
				return out, consumed, ErrChunkFraming
			}
			consumed = len(data) - len(rest)
			d.State = ChunkAwaitingSize

		case ChunkAwaitingTrailers:
			line, rest, ok := findLine(data[consumed:])
			if !ok {
				return out, consumed, nil
			}
			consumed = len(data) - len(rest)
			if len(line) == 0 {
				d.State = ChunkDone
				return out, consumed, nil
			}
			// This decoder only tracks framing: the raw trailer line is
			// discarded here, and trailers are not surfaced to the caller.

		case ChunkDone:
			return out, consumed, nil
		}
	}
}

func parseChunkSize(line []byte) (int64, error) {
	if ext := bytes.IndexByte(line, ';'); ext != -1 {
		line = line[:ext]
	}
	if len(line) == 0 {
		return 0, ErrChunkFraming
	}
	var size int64
	for _, c := range line {
		v, ok := unhex(c)
		if !ok {
			return 0, ErrChunkFraming
		}
		size = size*16 + int64(v)
	}
	return size, nil
}

// WriteChunk appends a chunked-framed representation of payload to dst:
// "<hex-size>\r\n<payload>\r\n".
func WriteChunk(dst []byte, payload []byte) []byte {
	dst = appendHex(dst, len(payload))
	dst = append(dst, '\r', '\n')
	dst = append(dst, payload...)
	dst = append(dst, '\r', '\n')
	return dst
}

// WriteLastChunk appends the terminating zero-length chunk, optional
// trailers ("footers"), and the final CRLF.
func WriteLastChunk(dst []byte, footers []Field) []byte {
	dst = append(dst, '0', '\r', '\n')
	for _, f := range footers {
		dst = append(dst, f.Name...)
		dst = append(dst, ':', ' ')
		dst = append(dst, f.Value...)
		dst = append(dst, '\r', '\n')
	}
	dst = append(dst, '\r', '\n')
	return dst
}

func appendHex(dst []byte, n int) []byte {
	if n == 0 {
		return append(dst, '0')
	}
	const digits = "0123456789abcdef"
	var tmp [16]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = digits[n&0xf]
		n >>= 4
	}
	return append(dst, tmp[i:]...)
}
