package error

const (
	TypeBadRequest = "BAD_REQUEST"
	TypeNotFound   = "NOT_FOUND"
	TypeError      = "ERROR"
)

// ApiError is the body of every non 2xx response
type ApiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e ApiError) Error() string {
	return e.Message
}
