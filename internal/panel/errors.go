package panel

import "fmt"

// Error is a panel API failure: transport, auth, or an unexpected response,
// reported after any internal retries are exhausted. A missing account
// is not an Error; lookups return nil for that.
type Error struct {
	Op     string // operation that failed, e.g. "get user"
	Detail string // panel-provided detail, if any
	Err    error  // underlying transport/parse error, if any
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("marzban %s: %s: %v", e.Op, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("marzban %s: %s", e.Op, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("marzban %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("marzban %s failed", e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func opErr(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func detailErr(op, detail string) *Error {
	return &Error{Op: op, Detail: detail}
}
