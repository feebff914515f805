package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrEmptyConnectionURL     = errors.New("empty mongo connection URL, use MONGODB_URL env var")
	ErrEmptyDatabaseName      = errors.New("empty mongo database name")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
)
