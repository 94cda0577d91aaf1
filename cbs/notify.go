package cbs

import "github.com/ftl/ril-cbs/ril"

// maxTrailer is the number of bytes that may follow a length prefixed PDU.
const maxTrailer = 4

// DecodeBroadcast extracts the PDU from the payload of RIL_UNSOL_RESPONSE_NEW_BROADCAST_SMS.
// Usually the payload is a 32 bit length followed by the PDU and maybe a short trailer, but some
// modems send the PDU as a plain blob. If the payload does not fit the length prefixed shape,
// the whole payload is the PDU. Payloads without room for a length yield nothing.
func DecodeBroadcast(data []byte) ([]byte, bool) {
	parser := ril.NewParser(data)
	length, ok := parser.GetUint32()
	if !ok {
		return nil, false
	}

	pdu, ok := parser.GetBytes(int(length))
	if ok && parser.BytesRemaining() < maxTrailer {
		return pdu, true
	}
	return data, true
}
