package opensearch

import "errors"

var (
	// ErrConnectionFailed indicates the OpenSearch client could not be created
	// due to configuration or network issues.
	ErrConnectionFailed = errors.New("opensearch connection failed")

	// ErrHealthcheckFailed indicates the cluster is unreachable or unhealthy.
	ErrHealthcheckFailed = errors.New("opensearch healthcheck failed")

	// ErrIndexFailed is returned when a document write or index creation is rejected.
	ErrIndexFailed = errors.New("opensearch index request failed")
)
