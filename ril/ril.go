package ril

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// RequestCode identifies a solicited RIL request (RIL_REQUEST_*)
type RequestCode uint32

// The RIL requests used for cell broadcast handling
const (
	RequestGSMSetBroadcastSMSConfig  RequestCode = 90
	RequestGSMSMSBroadcastActivation RequestCode = 91
)

var requestNames = map[RequestCode]string{
	RequestGSMSetBroadcastSMSConfig:  "GSM_SET_BROADCAST_SMS_CONFIG",
	RequestGSMSMSBroadcastActivation: "GSM_SMS_BROADCAST_ACTIVATION",
}

func (c RequestCode) String() string {
	if name, ok := requestNames[c]; ok {
		return name
	}
	return fmt.Sprintf("REQUEST_%d", uint32(c))
}

// UnsolCode identifies an unsolicited RIL event (RIL_UNSOL_*)
type UnsolCode uint32

// The unsolicited events relevant for cell broadcast handling
const (
	UnsolResponseNewSMS          UnsolCode = 1003
	UnsolResponseNewBroadcastSMS UnsolCode = 1013
)

func (c UnsolCode) String() string {
	switch c {
	case UnsolResponseNewSMS:
		return "RESPONSE_NEW_SMS"
	case UnsolResponseNewBroadcastSMS:
		return "RESPONSE_NEW_BROADCAST_SMS"
	default:
		return fmt.Sprintf("UNSOL_%d", uint32(c))
	}
}

// Status is the error code of a RIL response (RIL_E_*)
type Status int32

// RIL response status codes
const (
	StatusSuccess             Status = 0
	StatusRadioNotAvailable   Status = 1
	StatusGenericFailure      Status = 2
	StatusPasswordIncorrect   Status = 3
	StatusRequestNotSupported Status = 6
	StatusCancelled           Status = 7
	StatusSMSSendFailRetry    Status = 10
	StatusSIMAbsent           Status = 11
	StatusModeNotSupported    Status = 13
	StatusNoMemory            Status = 36
	StatusInternalErr         Status = 37
	StatusSystemErr           Status = 38
	StatusModemErr            Status = 39
	StatusInvalidState        Status = 40
	StatusNoResources         Status = 41
	StatusSIMErr              Status = 42
	StatusInvalidArguments    Status = 43
	StatusInvalidSIMState     Status = 44
	StatusInvalidModemState   Status = 45
	StatusOperationNotAllowed Status = 54
	StatusNotProvisioned      Status = 58
	StatusInvalidResponse     Status = 66
)

var statusNames = map[Status]string{
	StatusSuccess:             "SUCCESS",
	StatusRadioNotAvailable:   "RADIO_NOT_AVAILABLE",
	StatusGenericFailure:      "GENERIC_FAILURE",
	StatusPasswordIncorrect:   "PASSWORD_INCORRECT",
	StatusRequestNotSupported: "REQUEST_NOT_SUPPORTED",
	StatusCancelled:           "CANCELLED",
	StatusSMSSendFailRetry:    "SMS_SEND_FAIL_RETRY",
	StatusSIMAbsent:           "SIM_ABSENT",
	StatusModeNotSupported:    "MODE_NOT_SUPPORTED",
	StatusNoMemory:            "NO_MEMORY",
	StatusInternalErr:         "INTERNAL_ERR",
	StatusSystemErr:           "SYSTEM_ERR",
	StatusModemErr:            "MODEM_ERR",
	StatusInvalidState:        "INVALID_STATE",
	StatusNoResources:         "NO_RESOURCES",
	StatusSIMErr:              "SIM_ERR",
	StatusInvalidArguments:    "INVALID_ARGUMENTS",
	StatusInvalidSIMState:     "INVALID_SIM_STATE",
	StatusInvalidModemState:   "INVALID_MODEM_STATE",
	StatusOperationNotAllowed: "OPERATION_NOT_ALLOWED",
	StatusNotProvisioned:      "NOT_PROVISIONED",
	StatusInvalidResponse:     "INVALID_RESPONSE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_%d", int32(s))
}

// OK reports whether the status indicates success.
func (s Status) OK() bool {
	return s == StatusSuccess
}

var hexSanitizer = regexp.MustCompile(`\s+`)

// HexToBinary converts a hex dump (whitespace is ignored) into a slice of bytes
func HexToBinary(s string) ([]byte, error) {
	sanitized := hexSanitizer.ReplaceAllString(s, "")
	return hex.DecodeString(sanitized)
}

// BinaryToHex converts a slice of bytes into an upper case hex string
func BinaryToHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}
