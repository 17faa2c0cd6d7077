package model

// ResultCode is the closed set of authentication outcomes reported to the
// client.
type ResultCode uint8

const (
	ResultUnknown ResultCode = iota
	ResultSuccess
	ResultInvalidUsernameOrPassword
	ResultBanned
	ResultAlreadyOnline
	ResultServerFull
	ResultAccountCreated
)

// Valid reports whether c is a known, non-zero result code.
func (c ResultCode) Valid() bool {
	return c >= ResultSuccess && c <= ResultAccountCreated
}

func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultInvalidUsernameOrPassword:
		return "invalid_username_or_password"
	case ResultBanned:
		return "banned"
	case ResultAlreadyOnline:
		return "already_online"
	case ResultServerFull:
		return "server_full"
	case ResultAccountCreated:
		return "account_created"
	default:
		return "unknown"
	}
}
