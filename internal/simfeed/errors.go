package simfeed

import "errors"

var (
	// ErrUnhealthy reports a failed service health probe.
	ErrUnhealthy = errors.New("service unhealthy")

	// ErrVerification reports one or more failed scenario expectations.
	ErrVerification = errors.New("scenario verification failed")
)
