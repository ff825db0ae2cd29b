package xerrors

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the purpose of choosing a response.
// Kinds never change the error message, they only ride along in the chain.
type Kind int

const (
	// KindUnexpected is the zero value: anything not explicitly classified.
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindRateLimited
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindStore:
		return "store"
	default:
		return "unexpected"
	}
}

// HTTPStatus maps a kind to the status code returned to callers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type kinded struct {
	err  error
	kind Kind
}

func (k *kinded) Error() string     { return k.err.Error() }
func (k *kinded) Unwrap() error     { return k.err }
func (k *kinded) Kind() Kind        { return k.kind }
func (k *kinded) IsXerrorsWrapper() {}

// WithKind tags err with kind. The outermost tag wins in KindOf.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kinded{err: err, kind: kind}
}

// NewKind creates a new stacked error tagged with kind
func NewKind(kind Kind, msg string) error {
	return &kinded{err: withStackSkip(errors.New(msg), 2), kind: kind}
}

// KindOf returns the first kind found walking the chain, KindUnexpected if none.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnexpected
	}
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnexpected
}

// IsKind reports whether err classifies as kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
