package resp

import (
	"bufio"
	"io"
)

// Payload is one decoded frame (or a terminal error) coming off a
// connection. ParseStream emits one Payload per complete top-level frame,
// however many frames a single TCP read happened to coalesce.
type Payload struct {
	Data Reply
	Err  error
}

// ParseStream continuously reads from reader, decodes every complete frame
// it can find, and emits them on the returned channel. A single read that
// delivers several pipelined commands yields several Payloads before the
// next read; a read that delivers half a command yields nothing until more
// bytes arrive. The channel is closed on EOF or on the first error.
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parseLoop(reader, ch)
	return ch
}

func parseLoop(reader io.Reader, ch chan<- *Payload) {
	defer close(ch)

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		frames, consumed, err := DecodeFrames(buf)
		for _, f := range frames {
			ch <- &Payload{Data: f}
		}
		buf = buf[consumed:]
		if err != nil {
			ch <- &Payload{Err: err}
			return
		}

		n, rerr := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			if rerr == io.EOF {
				if len(buf) > 0 {
					ch <- &Payload{Err: io.ErrUnexpectedEOF}
				}
				return
			}
			ch <- &Payload{Err: rerr}
			return
		}
	}
}

// StreamParser reads one complete Reply at a time from a connection,
// blocking until a full frame is available. Used for request/reply
// round trips where a channel-based stream is overkill: the replication
// client's PING/REPLCONF/PSYNC handshake steps.
type StreamParser struct {
	reader *bufio.Reader
	buf    []byte
}

func NewStreamParser(r io.Reader) *StreamParser {
	return &StreamParser{reader: bufio.NewReader(r)}
}

func (p *StreamParser) ReadReply() (Reply, error) {
	for {
		frame, consumed, err := decodeFrame(p.buf, 0)
		if err == nil {
			p.buf = p.buf[consumed:]
			return frame, nil
		}
		if err != errIncomplete {
			return nil, err
		}

		chunk := make([]byte, 4096)
		n, rerr := p.reader.Read(chunk)
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}
