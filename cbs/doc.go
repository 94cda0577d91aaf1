/*
The package cbs implements the cell broadcast part of a RIL modem driver: it configures the broadcast
topics of the modem and forwards incoming cell broadcast PDUs to the upper layer.

The adapter only frames and deframes the transport PDU. Decoding the broadcast pages (message
identifier, data coding scheme, text) is left to the upper layer.

Abbreviations:
CBS: Cell Broadcast Service
PDU: Protocol Data Unit
RIL: Radio Interface Layer
*/
package cbs
