package transport

import "github.com/gorilla/websocket"

// MaxCloseReason is the longest close reason that fits in a control frame
// (125 byte payload minus the 2 byte code).
const MaxCloseReason = 123

var closeCodeText = map[int]string{
	websocket.CloseNormalClosure:           "Normal close",
	websocket.CloseGoingAway:               "Going away",
	websocket.CloseProtocolError:           "Protocol error",
	websocket.CloseUnsupportedData:         "Unsupported data",
	websocket.CloseNoStatusReceived:        "No status set",
	websocket.CloseAbnormalClosure:         "Abnormal close",
	websocket.CloseInvalidFramePayloadData: "Invalid payload",
	websocket.ClosePolicyViolation:         "Policy violation",
	websocket.CloseMessageTooBig:           "Message too big",
	websocket.CloseMandatoryExtension:      "Extension required",
	websocket.CloseInternalServerErr:       "Internal endpoint error",
	websocket.CloseServiceRestart:          "Service restart",
	websocket.CloseTryAgainLater:           "Try again later",
	1014:                                   "Bad gateway",
	websocket.CloseTLSHandshake:            "TLS handshake failure",
}

// CloseCodeText returns a human readable name for a close code.
func CloseCodeText(code int) string {
	if s, ok := closeCodeText[code]; ok {
		return s
	}
	switch {
	case code >= 3000 && code <= 3999:
		return "Registered close code"
	case code >= 4000 && code <= 4999:
		return "Application close code"
	}
	return "Unknown"
}

// ValidCloseCode reports whether code may be sent in a close frame.
// 1004, 1005, 1006 and 1015 are reserved for local reporting only.
func ValidCloseCode(code int) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1014:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}
