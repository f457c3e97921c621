package infra

import (
	"errors"
	"log/slog"

	"webhook-forwarder/internal/pkg/errs"
)

type RepositoryErrorKind string

// Infrastructure-specific error kinds. KindDuplicateKey is the uniqueness
// violation on (provider, hash); the repository translates it into the
// duplicate response path instead of retrying it. KindTimeout,
// KindConnectivity and KindDBFailure are the kinds the repository's retry
// classifier treats as transient.
const (
	KindNotFound     RepositoryErrorKind = "NOT_FOUND"
	KindDBFailure    RepositoryErrorKind = "DB_FAILURE"
	KindDuplicateKey RepositoryErrorKind = "DUPLICATE_KEY"
	KindTimeout      RepositoryErrorKind = "TIMEOUT"
	KindConnectivity RepositoryErrorKind = "CONNECTIVITY"
)

type RepositoryError struct {
	Kind RepositoryErrorKind
	msg  string
	err  error
}

func (e RepositoryError) Error() string {
	if e.err != nil {
		return string(e.Kind) + ": " + e.msg + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.msg
}

func (e RepositoryError) Unwrap() error {
	return e.err
}

// WrapRepoErr classifies err into a RepositoryError. KindDuplicateKey logs
// at Debug rather than Error: a uniqueness violation is the duplicate path,
// not a failure — at the target intake rate (see the ingest handler)
// concurrent duplicates are routine traffic, and Error-level logging on
// every one of them would drown real store failures in noise.
func WrapRepoErr(kind RepositoryErrorKind, msg string, err error) error {
	if kind == KindDuplicateKey {
		slog.Default().Debug("repository error: "+msg, slog.String("kind", string(kind)))
	} else {
		slog.Default().Error("repository error: "+msg, slog.String("kind", string(kind)))
	}

	if err != nil {
		err = errs.Wrap(err, msg)
	}

	return RepositoryError{Kind: kind, msg: msg, err: err}
}

func IsKind(err error, kind RepositoryErrorKind) bool {
	var e RepositoryError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
