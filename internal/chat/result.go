package chat

import "errors"

// ResultCode classifies expected, caller-recoverable failures. Storage faults
// never travel through Result; they stay db.Error.
type ResultCode int

const (
	ResultRoomAlreadyExists ResultCode = iota + 1
	ResultRoomFull
	ResultBannedFromRoom
	ResultInvalidPassword
	ResultNoPermission
	ResultMessageNotFound
	ResultDBFail
	ResultAvatarNotFound
	ResultAvatarAlreadyExists
	ResultRoomNotFound
)

func (c ResultCode) String() string {
	switch c {
	case ResultRoomAlreadyExists:
		return "ROOM_ALREADYEXISTS"
	case ResultRoomFull:
		return "ROOMFULL"
	case ResultBannedFromRoom:
		return "BANNEDFROMROOM"
	case ResultInvalidPassword:
		return "INVALIDPASSWORD"
	case ResultNoPermission:
		return "NOPERMISSION"
	case ResultMessageNotFound:
		return "PMSGNOTFOUND"
	case ResultDBFail:
		return "DBFAIL"
	case ResultAvatarNotFound:
		return "AVATARNOTFOUND"
	case ResultAvatarAlreadyExists:
		return "AVATAR_ALREADYEXISTS"
	case ResultRoomNotFound:
		return "ROOMNOTFOUND"
	}
	return "UNKNOWN"
}

// Result is a domain-level failure surfaced as a structured code plus
// message.
type Result struct {
	Code    ResultCode
	Message string
}

func (r *Result) Error() string {
	if r.Message == "" {
		return r.Code.String()
	}
	return r.Code.String() + ": " + r.Message
}

func NewResult(code ResultCode, message string) *Result {
	return &Result{Code: code, Message: message}
}

// IsResult reports whether err is a Result carrying the given code.
func IsResult(err error, code ResultCode) bool {
	var result *Result
	return errors.As(err, &result) && result.Code == code
}

// CorruptionError marks stored data that violates a persistence invariant.
// It is fatal to the single operation and distinct from a storage fault.
type CorruptionError struct {
	Message string
}

func (e *CorruptionError) Error() string {
	return "data corruption: " + e.Message
}
