package ril

import "encoding/binary"

// Parser reads the binary payload of RIL responses and unsolicited events.
// A read that does not fit into the remaining data fails and leaves the position untouched.
type Parser struct {
	data []byte
	pos  int
}

func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

func (p *Parser) GetUint32() (uint32, bool) {
	if p.BytesRemaining() < 4 {
		return 0, false
	}
	result := binary.LittleEndian.Uint32(p.data[p.pos:])
	p.pos += 4
	return result, true
}

func (p *Parser) GetInt32() (int32, bool) {
	result, ok := p.GetUint32()
	return int32(result), ok
}

// GetBytes returns the next n bytes. The result shares memory with the parsed data.
func (p *Parser) GetBytes(n int) ([]byte, bool) {
	if n < 0 || p.BytesRemaining() < n {
		return nil, false
	}
	result := p.data[p.pos : p.pos+n]
	p.pos += n
	return result, true
}

// Rest returns all remaining bytes.
func (p *Parser) Rest() []byte {
	result := p.data[p.pos:]
	p.pos = len(p.data)
	return result
}

func (p *Parser) BytesRemaining() int {
	return len(p.data) - p.pos
}

func (p *Parser) AtEnd() bool {
	return p.pos >= len(p.data)
}
