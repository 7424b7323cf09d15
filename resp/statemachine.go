package resp

import (
	"bytes"
	"strconv"

	"github.com/go-rconn/rconn"
)

// StateMachine is a rconn.Decoder for RESP2: simple strings, errors,
// integers, bulk strings (including the null bulk string, "$-1\r\n")
// and arrays (including the null array, "*-1\r\n"), nested arbitrarily
// deep. It keeps an explicit stack of in-progress array frames so
// Decode can return false mid-frame and be re-entered later with more
// bytes, without reparsing anything already consumed.
type StateMachine struct {
	stack []frame
}

type frame struct {
	remaining int
	values    []rconn.Value
}

func New() *StateMachine {
	return &StateMachine{}
}

func (sm *StateMachine) Reset() {
	sm.stack = sm.stack[:0]
}

func (sm *StateMachine) Decode(buf *bytes.Buffer, cmd rconn.Command, out rconn.OutputSink) (bool, error) {
	for {
		tok, ok, err := parseOne(buf)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}

		if tok.arrayStart {
			if tok.arrayLen <= 0 {
				// Zero-length or null array: fold immediately, there
				// is nothing to wait on.
				v := rconn.Value{Type: rconn.TypeArray, Array: []rconn.Value{}}
				if tok.arrayLen < 0 {
					v = rconn.Value{Type: rconn.TypeNull, Null: true}
				}
				if done := sm.fold(v, out); done {
					return true, nil
				}
				continue
			}
			sm.stack = append(sm.stack, frame{remaining: tok.arrayLen})
			continue
		}

		if done := sm.fold(tok.value, out); done {
			return true, nil
		}
	}
}

// fold inserts v as either the top-level result or an element of the
// current array frame, closing out any frames that complete as a
// result and folding their own array value upward in turn.
func (sm *StateMachine) fold(v rconn.Value, out rconn.OutputSink) bool {
	for {
		if len(sm.stack) == 0 {
			if out != nil {
				out.SetValue(v)
				if v.Type == rconn.TypeError {
					out.SetError(v.Str)
				}
			}
			return true
		}

		top := &sm.stack[len(sm.stack)-1]
		top.values = append(top.values, v)
		top.remaining--
		if top.remaining > 0 {
			return false
		}

		v = rconn.Value{Type: rconn.TypeArray, Array: top.values}
		sm.stack = sm.stack[:len(sm.stack)-1]
	}
}

// token is either a complete leaf value or the header of an array
// about to start; arrayLen < 0 marks a null array.
type token struct {
	arrayStart bool
	arrayLen   int
	value      rconn.Value
}

// parseOne consumes exactly one complete RESP unit from buf — a leaf
// value including any bulk-string payload, or an array's length
// header — or consumes nothing and reports ok=false if buf does not
// yet hold a full unit.
func parseOne(buf *bytes.Buffer) (token, bool, error) {
	data := buf.Bytes()
	if len(data) == 0 {
		return token{}, false, nil
	}

	nl := bytes.IndexByte(data, '\n')
	if nl == -1 {
		return token{}, false, nil
	}

	typ := data[0]
	line := data[1:nl]
	line = bytes.TrimSuffix(line, []byte("\r"))
	headerLen := nl + 1

	switch typ {
	case '+':
		buf.Next(headerLen)
		return token{value: rconn.Value{Type: rconn.TypeSimpleString, Str: string(line)}}, true, nil

	case '-':
		buf.Next(headerLen)
		return token{value: rconn.Value{Type: rconn.TypeError, Str: string(line)}}, true, nil

	case ':':
		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return token{}, false, &ParseError{Message: "invalid integer reply", Err: err}
		}
		buf.Next(headerLen)
		return token{value: rconn.Value{Type: rconn.TypeInteger, Int: n}}, true, nil

	case '$':
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return token{}, false, &ParseError{Message: "invalid bulk string length", Err: err}
		}
		if size < 0 {
			buf.Next(headerLen)
			return token{value: rconn.Value{Type: rconn.TypeNull, Null: true}}, true, nil
		}
		total := headerLen + size + 2
		if len(data) < total {
			return token{}, false, nil
		}
		payload := make([]byte, size)
		copy(payload, data[headerLen:headerLen+size])
		buf.Next(total)
		return token{value: rconn.Value{Type: rconn.TypeBulkString, Bulk: payload}}, true, nil

	case '*':
		count, err := strconv.Atoi(string(line))
		if err != nil {
			return token{}, false, &ParseError{Message: "invalid array length", Err: err}
		}
		buf.Next(headerLen)
		return token{arrayStart: true, arrayLen: count}, true, nil

	default:
		return token{}, false, &ParseError{Message: "unrecognized RESP type byte"}
	}
}
