package speech

// ErrorCode classifies recognizer failures for backoff.
type ErrorCode int

const (
	ErrorOther ErrorCode = iota
	ErrorNetwork
	ErrorAudio
	ErrorBusy
	ErrorNoMatch
	ErrorSpeechTimeout
	ErrorClient
	ErrorPermission
)

var errorNames = map[ErrorCode]string{
	ErrorOther:         "other",
	ErrorNetwork:       "network",
	ErrorAudio:         "audio",
	ErrorBusy:          "busy",
	ErrorNoMatch:       "no_match",
	ErrorSpeechTimeout: "speech_timeout",
	ErrorClient:        "client",
	ErrorPermission:    "permission",
}

func (c ErrorCode) String() string {
	if s, ok := errorNames[c]; ok {
		return s
	}
	return "other"
}

// ParseErrorCode maps a wire name back to a code; unknown names are
// ErrorOther.
func ParseErrorCode(s string) ErrorCode {
	for c, name := range errorNames {
		if name == s {
			return c
		}
	}
	return ErrorOther
}
