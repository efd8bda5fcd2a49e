package descriptor

import "errors"

var (
	ErrInvalid          = errors.New("descriptor: invalid deployment descriptor")
	ErrDuplicateServlet = errors.New("descriptor: duplicate servlet name")
	ErrEmptyServletName = errors.New("descriptor: servlet name cannot be empty")
	ErrEmptyServletKind = errors.New("descriptor: servlet kind cannot be empty")
	ErrContextPath      = errors.New("descriptor: context path must be empty or start with '/' and not end with '/'")
)
